// Command replay runs a recorded trading session through the heat engine:
// signals are scored and turned into paper positions, ticks mark them to
// market and the day's summary is printed as JSON lines.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/heat-engine/internal/config"
	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/heat"
	"github.com/Rajchodisetti/heat-engine/internal/lifecycle"
	"github.com/Rajchodisetti/heat-engine/internal/notify"
	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/outbox"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/risk"
	"github.com/Rajchodisetti/heat-engine/internal/store"
)

var (
	configPath  string
	envFiles    []string
	sessionPath string
	metricsAddr string
)

func main() {
	os.Exit(execute())
}

func execute() int {
	rootCmd := &cobra.Command{
		Use:           "replay",
		Short:         "Replay trading sessions through the heat engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files with HEAT_* overrides")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(verifyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a session file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := observ.Setup(cfg.LogConfig()); err != nil {
				return err
			}
			sess, err := readSession(sessionPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, sess)
		},
	}
	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "session JSON file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address while replaying")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func run(ctx context.Context, cfg config.Root, sess sessionFile) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		srv := metricsServer()
		g.Go(func() error {
			observ.Log("metrics_listening", map[string]any{"addr": cfg.Metrics.Addr})
			if err := srv.Start(cfg.Metrics.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return runSession(ctx, a, sess, os.Stdout)
	})
	return g.Wait()
}

func metricsServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(observ.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return e
}

// app is the wired engine for one replay.
type app struct {
	clock *replayClock
	coord *lifecycle.Coordinator
	kv    store.KV
}

func newApp(ctx context.Context, cfg config.Root) (*app, error) {
	clock := &replayClock{}

	kv, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	repo := store.NewPositionRepository(kv)

	var ob *outbox.Outbox
	if cfg.Outbox.Enabled {
		if ob, err = outbox.New(cfg.Outbox.Path, cfg.Outbox.DedupeWindowSecs); err != nil {
			_ = kv.Close()
			return nil, err
		}
	}
	sinks := []notify.Sink{notify.NewLogSink(observ.Logger())}
	if ob != nil {
		sinks = append(sinks, notify.NewOutboxSink(ob, cfg.OutboxBucket()))
	}
	disp := notify.NewDispatcher(cfg.NotifyConfig(), sinks, notify.WithClock(clock.Now))

	engine := paper.NewEngine(cfg.PaperConfig(), risk.NewDailyState(cfg.RiskLimits()),
		paper.WithClock(clock.Now),
		paper.WithRecorder(lifecycle.Recorders(repo, ob, disp)),
	)
	builder := decision.NewBuilder(cfg.DecisionConfig())
	scorer := heat.NewScorer(heat.NewAggregator(cfg.HeatConfig()), heat.NewTracker(cfg.RepeatWindow()))

	coord := lifecycle.New(lifecycle.Deps{
		Scorer:     scorer,
		Builder:    builder,
		Engine:     engine,
		Repo:       repo,
		Dispatcher: disp,
		Outbox:     ob,
		RiskLogDir: cfg.Paper.RiskLogDir,
		Clock:      clock.Now,
	})
	return &app{clock: clock, coord: coord, kv: kv}, nil
}

func (a *app) close() {
	if err := a.kv.Close(); err != nil {
		observ.Warn("store_close_failed", map[string]any{"error": err.Error()})
	}
}
