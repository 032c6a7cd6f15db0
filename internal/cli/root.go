// Package cli implements the tiered-memory CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/config"
	"github.com/rcliao/tiered-memory/internal/logging"
	"github.com/rcliao/tiered-memory/internal/memory"
	"github.com/rcliao/tiered-memory/internal/metrics"
	"github.com/rcliao/tiered-memory/internal/store"
)

var (
	configPath string
	dbPath     string
	driverFlag string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tiered-memory",
	Short: "Tiered memory for AI agents",
	Long: "Working, short-term, long-term, episodic and semantic memory with background " +
		"consolidation and forgetting. Long-term, semantic and episodic tiers persist between runs.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $TIERED_MEMORY_CONFIG or ~/.tiered-memory/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Snapshot location, overriding persistence.path")
	RootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Snapshot backend: file, sqlite or redis")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(getConfigPath()).Load()
	if err != nil {
		return nil, err
	}

	if driverFlag != "" && driverFlag != cfg.Persistence.Driver {
		if cfg.Persistence.Path == store.DefaultPath(cfg.Persistence.Driver) {
			cfg.Persistence.Path = store.DefaultPath(driverFlag)
		}
		cfg.Persistence.Driver = driverFlag
	}
	if dbPath != "" {
		cfg.Persistence.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is an initialized manager plus what it was built from.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	mgr      *memory.Manager
}

// openManager loads config, opens the snapshot backend and initializes a
// manager. One-shot commands pass scheduled=false so no sweeps run.
func openManager(cmd *cobra.Command, scheduled bool) *session {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		exitErr("build logger", err)
	}

	var backend store.Backend
	if cfg.Memory.PersistenceEnabled {
		backend, err = store.Open(cfg.Persistence)
		if err != nil {
			exitErr("open backend", err)
		}
	}

	reg := prometheus.NewRegistry()
	opts := []memory.Option{memory.WithMetrics(metrics.New(cfg.Metrics.Namespace, reg))}
	if !scheduled {
		opts = append(opts, memory.WithoutScheduler())
	}
	mgr := memory.New(cfg.Memory, backend, logger, opts...)
	if err := mgr.Initialize(cmd.Context()); err != nil {
		exitErr("initialize", err)
	}
	return &session{cfg: cfg, logger: logger, registry: reg, mgr: mgr}
}

// close persists the durable tiers and releases the backend.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.mgr.Shutdown(ctx); err != nil {
		exitErr("shutdown", err)
	}
	_ = s.logger.Sync()
}

// readContent returns the positional args joined, else piped stdin.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if stat != nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseMeta(meta string) map[string]any {
	if meta == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		exitErr("parse --meta", err)
	}
	return m
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
