// Package processor is the boundary a pipeline calls with raw input. It
// picks a memory operation, either explicitly from the request context or
// from lexical triggers in the input, and always answers with a Result
// rather than an error so the caller can fall back on its own input.
package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/memory"
	"github.com/rcliao/tiered-memory/internal/model"
)

// Operation types.
const (
	OpStore    = "store"
	OpRetrieve = "retrieve"
	OpUpdate   = "update"
	OpForget   = "forget"
	OpSearch   = "search"
	OpDefault  = "default"
)

// Memory is the subset of *memory.Manager the processor drives.
type Memory interface {
	Store(ctx context.Context, content model.Content, opts memory.StoreOptions) (*model.Item, error)
	Retrieve(ctx context.Context, query string, opts memory.RetrieveOptions) ([]model.ScoredItem, error)
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]*model.Item, error)
	Update(ctx context.Context, id string, p memory.UpdateParams) (*model.Item, error)
	Forget(ctx context.Context, id string) error
	Stats() memory.Stats
}

// Options tune an explicit operation. Fields that do not apply to the
// operation are ignored.
type Options struct {
	Tier       string         `json:"tier,omitempty"`
	Importance *float64       `json:"importance,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Tiers      []string       `json:"tiers,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Threshold  *float64       `json:"threshold,omitempty"`
}

// Operation is an explicit memory request. Data is the payload for store
// and update: a string, or an object for structured content.
type Operation struct {
	Type    string  `json:"type"`
	Data    any     `json:"data,omitempty"`
	Query   string  `json:"query,omitempty"`
	ID      string  `json:"id,omitempty"`
	Options Options `json:"options,omitempty"`
}

// Context accompanies the input.
type Context struct {
	Operation *Operation `json:"memoryOperation,omitempty"`
}

// Result is the answer to every Process call.
type Result struct {
	Success        bool          `json:"success"`
	Operation      string        `json:"operation"`
	Result         any           `json:"result,omitempty"`
	ProcessingTime time.Duration `json:"processingTime"`
	MemoryStats    memory.Stats  `json:"memoryStats"`
	Error          string        `json:"error,omitempty"`

	// Err is the underlying failure, for errors.Is checks.
	Err error `json:"-"`
}

// DefaultResult is what the default store-and-recall path returns.
type DefaultResult struct {
	Stored  *model.Item        `json:"stored"`
	Context []model.ScoredItem `json:"context"`
}

var triggers = []struct {
	op string
	re *regexp.Regexp
}{
	{OpStore, regexp.MustCompile(`(?i)\b(remember|store)\b`)},
	{OpRetrieve, regexp.MustCompile(`(?i)\b(recall|retrieve)\b`)},
	{OpForget, regexp.MustCompile(`(?i)\b(forget|delete)\b`)},
	{OpSearch, regexp.MustCompile(`(?i)\b(search|find)\b`)},
}

var (
	idPattern     = regexp.MustCompile(`\b[0-9A-HJKMNP-TV-Z]{26}\b`)
	fillerPattern = regexp.MustCompile(`(?i)^(that|for|about|me|memory|memories|of)\b\s*`)
)

// Processor routes input to a Memory.
type Processor struct {
	mem    Memory
	logger *zap.Logger
}

// New creates a processor over mem.
func New(mem Memory, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{mem: mem, logger: logger.With(zap.String("component", "processor"))}
}

// Classify returns the operation lexical triggers select for input, and
// the input with the trigger removed.
func Classify(input string) (op, rest string) {
	for _, t := range triggers {
		loc := t.re.FindStringIndex(input)
		if loc == nil {
			continue
		}
		rest = strings.TrimSpace(input[:loc[0]] + " " + input[loc[1]:])
		rest = strings.TrimLeft(rest, ":,;- ")
		for {
			trimmed := fillerPattern.ReplaceAllString(rest, "")
			if trimmed == rest {
				break
			}
			rest = trimmed
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			rest = input
		}
		return t.op, rest
	}
	return OpDefault, input
}

// Process runs one request and never returns an error directly.
func (p *Processor) Process(ctx context.Context, input string, pc Context) Result {
	start := time.Now()

	var (
		op  string
		out any
		err error
	)
	if pc.Operation != nil {
		op = strings.ToLower(strings.TrimSpace(pc.Operation.Type))
		out, err = p.explicit(ctx, input, op, pc.Operation)
	} else {
		var rest string
		op, rest = Classify(input)
		out, err = p.lexical(ctx, input, op, rest)
	}

	res := Result{
		Success:        err == nil,
		Operation:      op,
		Result:         out,
		ProcessingTime: time.Since(start),
		MemoryStats:    p.mem.Stats(),
		Err:            err,
	}
	if err != nil {
		res.Result = nil
		res.Error = err.Error()
		p.logger.Warn("memory operation failed", zap.String("operation", op), zap.Error(err))
	}
	return res
}

func (p *Processor) explicit(ctx context.Context, input, op string, o *Operation) (any, error) {
	switch op {
	case OpStore:
		content := contentOf(o.Data, input)
		return p.mem.Store(ctx, content, memory.StoreOptions{
			Tier:       o.Options.Tier,
			Importance: o.Options.Importance,
			Tags:       o.Options.Tags,
			Metadata:   o.Options.Metadata,
		})
	case OpRetrieve:
		return p.mem.Retrieve(ctx, firstNonEmpty(o.Query, input), memory.RetrieveOptions{
			Tiers:     o.Options.Tiers,
			Limit:     o.Options.Limit,
			Threshold: o.Options.Threshold,
		})
	case OpSearch:
		return p.mem.Search(ctx, firstNonEmpty(o.Query, input), memory.SearchOptions{
			Tiers: o.Options.Tiers,
			Tags:  o.Options.Tags,
			Limit: o.Options.Limit,
		})
	case OpUpdate:
		if o.ID == "" {
			return nil, fmt.Errorf("update needs an id: %w", memory.ErrInvalidOperation)
		}
		params := memory.UpdateParams{
			Importance: o.Options.Importance,
			Tags:       o.Options.Tags,
			Metadata:   o.Options.Metadata,
		}
		if o.Data != nil {
			c := contentOf(o.Data, "")
			params.Content = &c
		}
		return p.mem.Update(ctx, o.ID, params)
	case OpForget:
		if o.ID == "" {
			return nil, fmt.Errorf("forget needs an id: %w", memory.ErrInvalidOperation)
		}
		if err := p.mem.Forget(ctx, o.ID); err != nil {
			return nil, err
		}
		return map[string]string{"forgotten": o.ID}, nil
	}
	return nil, fmt.Errorf("operation %q: %w", op, memory.ErrInvalidOperation)
}

func (p *Processor) lexical(ctx context.Context, input, op, rest string) (any, error) {
	switch op {
	case OpStore:
		return p.mem.Store(ctx, model.TextContent(rest), memory.StoreOptions{})
	case OpRetrieve:
		return p.mem.Retrieve(ctx, rest, memory.RetrieveOptions{})
	case OpSearch:
		return p.mem.Search(ctx, rest, memory.SearchOptions{})
	case OpForget:
		id := idPattern.FindString(strings.ToUpper(input))
		if id == "" {
			return nil, fmt.Errorf("forget without a memory id: %w", memory.ErrInvalidOperation)
		}
		if err := p.mem.Forget(ctx, id); err != nil {
			return nil, err
		}
		return map[string]string{"forgotten": id}, nil
	}

	stored, err := p.mem.Store(ctx, model.TextContent(input), memory.StoreOptions{})
	if err != nil {
		return nil, err
	}
	recalled, err := p.mem.Retrieve(ctx, input, memory.RetrieveOptions{})
	if err != nil {
		return nil, err
	}
	related := recalled[:0]
	for _, s := range recalled {
		if s.ID != stored.ID {
			related = append(related, s)
		}
	}
	return DefaultResult{Stored: stored, Context: related}, nil
}

func contentOf(data any, fallback string) model.Content {
	switch v := data.(type) {
	case string:
		return model.TextContent(v)
	case map[string]any:
		return model.StructuredContent(v)
	case nil:
		return model.TextContent(fallback)
	default:
		return model.TextContent(fmt.Sprint(v))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
