package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/insurance-derivatives/internal/config"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/insurance-derivatives/internal/interfaces/http"
	"github.com/turtacn/insurance-derivatives/internal/interfaces/http/handlers"
	"github.com/turtacn/insurance-derivatives/internal/interfaces/http/middleware"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger REST API",
		Long: "serve exposes the risk catalogue, obligations and derivatives over HTTP,\n" +
			"together with /healthz, /readyz and /metrics. It runs until interrupted;\n" +
			"--timeout bounds each API request instead of the whole command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config.Server
			if addr != "" {
				cfg.Addr = addr
			}
			if f := cmd.Flag("timeout"); f != nil && f.Changed {
				cfg.RequestTimeout = cliCtx.Timeout
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := cliCtx.Open(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := b.Close(); cerr != nil {
					cliCtx.Logger.Warn("backend close failed", logging.Err(cerr))
				}
			}()

			if f := cmd.Flag("log-level"); cliCtx.ConfigPath != "" && (f == nil || !f.Changed) {
				watchLogLevel(cliCtx)
			}

			log := cliCtx.Logger.Named("http")
			router := newAPIRouter(b, log, cfg.RequestTimeout)
			return httpapi.NewServer(cfg, router, log).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// watchLogLevel applies log.level edits of the config file while serving.
// Other settings need a restart.
func watchLogLevel(cliCtx *CLIContext) {
	config.Watch(cliCtx.ConfigPath, func(cfg *config.Config) {
		next := logging.ParseLevel(cfg.Log.Level)
		if next == cliCtx.LogLevel.Level() {
			return
		}
		cliCtx.LogLevel.SetLevel(next)
		cliCtx.Logger.Info("log level changed", logging.String("level", next.String()))
	})
}

// newAPIRouter mounts the handlers over the backend ports.
func newAPIRouter(b *Backend, log logging.Logger, requestTimeout time.Duration) *gin.Engine {
	checks := make([]handlers.HealthChecker, 0, len(b.Probes))
	for _, p := range b.Probes {
		checks = append(checks, handlers.CheckFunc(p.Name, p.Check))
	}

	var snapshots handlers.SnapshotArchive
	if b.Snapshots != nil {
		snapshots = b.Snapshots
	}

	return httpapi.NewRouter(httpapi.RouterConfig{
		RiskHandler:       handlers.NewRiskHandler(b.Risks, log),
		ObligationHandler: handlers.NewObligationHandler(b.Obligations, log),
		DerivativeHandler: handlers.NewDerivativeHandler(b.Derivatives, snapshots, log),
		HealthHandler:     handlers.NewHealthHandler(Version, checks...),
		Metrics:           b.Metrics,
		Logger:            log,
		Logging:           middleware.DefaultLoggingConfig(),
		RequestTimeout:    requestTimeout,
	})
}
