package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/processor"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the manager with background sweeps, processing stdin line by line",
		Long: "Keep one manager alive with consolidation and forgetting running on their intervals. " +
			"Each stdin line is either plain input or a JSON request " +
			`{"input":"...","context":{"memoryOperation":{...}}}` + "; each answer is one JSON line on stdout. " +
			"The durable tiers are saved on EOF or SIGINT/SIGTERM.",
		Run: runServe,
	}

	cmd.Flags().String("metrics-addr", "", "Serve Prometheus /metrics on this address (default: metrics.addr)")

	RootCmd.AddCommand(cmd)
}

// request is one serve input line in JSON form.
type request struct {
	Input   string            `json:"input"`
	Context processor.Context `json:"context"`
}

func parseRequest(line string) request {
	if strings.HasPrefix(line, "{") {
		var req request
		if err := json.Unmarshal([]byte(line), &req); err == nil {
			return req
		}
	}
	return request{Input: line}
}

func runServe(cmd *cobra.Command, args []string) {
	s := openManager(cmd, true)
	defer s.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		addr = s.cfg.Metrics.Addr
	}
	if addr != "" {
		srv := serveMetrics(s, addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Error("read stdin", zap.Error(err))
		}
	}()

	proc := processor.New(s.mgr, s.logger)
	enc := json.NewEncoder(os.Stdout)
	s.logger.Info("serving", zap.String("metrics_addr", addr))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down", zap.Error(ctx.Err()))
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			req := parseRequest(line)
			if err := enc.Encode(proc.Process(ctx, req.Input, req.Context)); err != nil {
				s.logger.Error("write result", zap.Error(err))
			}
		}
	}
}

func serveMetrics(s *session, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	}()
	s.logger.Info("metrics server started", zap.String("addr", addr))
	return srv
}
