package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sampledlru/internal/config"
	"sampledlru/internal/simulate"
)

var simulateFlags = map[string]string{
	config.KeyCapacity:       "capacity",
	config.KeyWorkers:        "workers",
	config.KeySeed:           "seed",
	config.KeyReportInterval: "report-interval",
	config.KeyMetricsAddr:    "metrics-addr",
	config.KeyWorkloadKind:   "workload",
	config.KeyWorkloadKeys:   "keys",
	config.KeyWorkloadOps:    "ops",
	config.KeyWorkloadZipfS:  "zipf-s",
	config.KeyWorkloadWrites: "write-ratio",
}

func newSimulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Compare hit ratios of the sampled cache and an exact LRU",
		Long: `Replays a synthetic workload against the sampled cache and an exact LRU
of the same capacity, then prints both hit ratios.

Every flag can also be set in the config file or through SAMPLEDLRU_*
environment variables (e.g. SAMPLEDLRU_WORKLOAD_KIND=scan).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(a.v, cmd, simulateFlags); err != nil {
				return err
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), a.logger, cfg, nil)
		},
	}

	f := cmd.Flags()
	f.Int("capacity", 1024, "cache capacity")
	f.Int("workers", 1, "goroutines sharing each cache")
	f.Uint64("seed", 1, "seed for the workload and the eviction sampler")
	f.Duration("report-interval", time.Second, "progress log interval (0 disables)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address and keep running until interrupted")
	f.String("workload", "zipf", "key distribution: uniform, zipf or scan")
	f.Uint64("keys", 8192, "number of distinct keys")
	f.Int("ops", 1_000_000, "operations to replay")
	f.Float64("zipf-s", 1.1, "zipf skew (> 1)")
	f.Float64("write-ratio", 0.2, "share of operations that are writes")
	return cmd
}

// runSimulate replays cfg and prints the results. With a metrics address it
// binds first, reports the bound address to onListen, and keeps serving until
// ctx is done.
func runSimulate(ctx context.Context, out io.Writer, logger *zap.Logger, cfg config.Config, onListen func(net.Addr)) error {
	reg := prometheus.NewRegistry()
	runner, err := simulate.NewRunner(cfg, logger, reg)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		srv = &http.Server{
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if onListen != nil {
			onListen(ln.Addr())
		}
	}

	results, err := runner.Run(ctx)
	if err != nil {
		shutdown(srv, logger)
		return err
	}
	if err := printResults(out, results); err != nil {
		shutdown(srv, logger)
		return err
	}

	if srv != nil {
		logger.Info("replay done; metrics stay available until interrupted")
		<-ctx.Done()
		shutdown(srv, logger)
	}
	return nil
}

func shutdown(srv *http.Server, logger *zap.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics listener shutdown", zap.Error(err))
	}
}

func printResults(out io.Writer, results []simulate.Result) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tHIT RATIO\tHITS\tMISSES\tEVICTIONS\tELAPSED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%d\t%d\t%s\n",
			r.Policy, r.HitRatio, r.Stats.Hits, r.Stats.Misses, r.Stats.Evictions, r.Elapsed.Round(time.Microsecond))
	}
	return tw.Flush()
}
