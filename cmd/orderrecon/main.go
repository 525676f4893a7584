package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/goccy/go-json"
	"github.com/railzwaylabs/orderrecon/internal/allocation"
	"github.com/railzwaylabs/orderrecon/internal/clock"
	"github.com/railzwaylabs/orderrecon/internal/config"
	"github.com/railzwaylabs/orderrecon/internal/database"
	"github.com/railzwaylabs/orderrecon/internal/dimension"
	dimensionservice "github.com/railzwaylabs/orderrecon/internal/dimension/service"
	"github.com/railzwaylabs/orderrecon/internal/factorder"
	factrepository "github.com/railzwaylabs/orderrecon/internal/factorder/repository"
	factservice "github.com/railzwaylabs/orderrecon/internal/factorder/service"
	"github.com/railzwaylabs/orderrecon/internal/harmonize"
	"github.com/railzwaylabs/orderrecon/internal/metrics"
	"github.com/railzwaylabs/orderrecon/internal/migration"
	"github.com/railzwaylabs/orderrecon/internal/observability"
	"github.com/railzwaylabs/orderrecon/internal/paymentdetail"
	"github.com/railzwaylabs/orderrecon/internal/redis"
	"github.com/railzwaylabs/orderrecon/internal/runlock"
	"github.com/railzwaylabs/orderrecon/internal/runlog"
	runlogservice "github.com/railzwaylabs/orderrecon/internal/runlog/service"
	"github.com/railzwaylabs/orderrecon/internal/staging"
	"github.com/railzwaylabs/orderrecon/internal/validation"
	validationservice "github.com/railzwaylabs/orderrecon/internal/validation/service"
	"github.com/railzwaylabs/orderrecon/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var errValidationFailed = errors.New("validation_failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "orderrecon",
		Short:         "Reconcile marketplace order lines into the fact_orders table",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(opts.configFile)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			opts.v = v
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", "", "log level")
	flags.String("staging-dir", "", "directory holding the raw marketplace exports")
	flags.String("dimensions-dir", "", "directory holding the dimension CSVs")
	flags.String("output", "", "fact_orders CSV path")
	flags.Int("workers", 0, "allocation workers")
	flags.StringSlice("platforms", nil, "platforms to reconcile (lazada,shopee)")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newWatchCmd(opts), newVersionCmd())
	return root
}

var flagKeys = map[string]string{
	"log-level":      "log.level",
	"staging-dir":    "staging.dir",
	"dimensions-dir": "dimensions.dir",
	"output":         "output.fact_csv",
	"workers":        "reconcile.workers",
	"platforms":      "reconcile.platforms",
}

// bindFlags binds only flags the user set, so unset flags never shadow the
// config file or environment.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation and write the fact table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, opts.v)
		},
	}
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var strict bool
	var reportPath string
	cmd := &cobra.Command{
		Use:   "validate <fact.csv>",
		Short: "Check an existing fact table against the reconciliation invariant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(cmd.Context(), opts.v, path, reportPath, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any row is flagged")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write the report to this JSON file")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the reconciliation whenever staged exports change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts.v)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), readVersionFromEnv())
		},
	}
}

func coreModules(v *viper.Viper) fx.Option {
	return fx.Options(
		fx.Supply(v),
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(registerSnowflake),
		clock.Module,
		database.Module,
		migration.Module,
		runlog.Module,
	)
}

func pipelineModules(v *viper.Viper) fx.Option {
	return fx.Options(
		coreModules(v),
		redis.Module,
		runlock.Module,
		metrics.Module,
		staging.Module,
		dimension.Module,
		paymentdetail.Module,
		allocation.Module,
		validation.Module,
		factorder.Module,
		harmonize.Module,
	)
}

func startApp(ctx context.Context, opts ...fx.Option) (*fx.App, error) {
	app := fx.New(opts...)
	startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, err
	}
	return app, nil
}

func stopApp(app *fx.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.Stop(ctx)
}

func runOnce(ctx context.Context, v *viper.Viper) error {
	var svc *harmonize.Service
	app, err := startApp(ctx, pipelineModules(v), fx.Populate(&svc))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer stopApp(app)

	summary, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d rows, %d discrepancies, %d overshoots, checksum %s\n",
		summary.RunID, summary.Facts.Rows,
		summary.Validation.Tally.Discrepancy, summary.Validation.Tally.Overshoot,
		summary.Checksum,
	)
	return nil
}

func runWatch(ctx context.Context, v *viper.Viper) error {
	var (
		svc *harmonize.Service
		cfg config.Config
		log *zap.Logger
	)
	app, err := startApp(ctx, pipelineModules(v), fx.Populate(&svc, &cfg, &log))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer stopApp(app)

	trigger := func(ctx context.Context) error {
		_, err := svc.Run(ctx)
		if harmonize.IsLocked(err) {
			log.Info("run skipped, another run holds the lock")
			return nil
		}
		return err
	}
	if err := trigger(ctx); err != nil {
		log.Error("initial run failed", zap.Error(err))
	}
	return watch.New(cfg.Staging.Dir, cfg.Watch.Debounce, trigger, log).Run(ctx)
}

type validateDeps struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Validator  *validationservice.Validator
	Dimensions *dimensionservice.Service
	Recorder   *runlogservice.Recorder
}

func runValidate(ctx context.Context, v *viper.Viper, path, reportPath string, strict bool) error {
	var deps validateDeps
	app, err := startApp(ctx,
		coreModules(v),
		dimension.Module,
		validation.Module,
		fx.Populate(&deps),
	)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer stopApp(app)

	if path == "" {
		path = deps.Cfg.Output.FactCSV
	}
	log := deps.Log.Named("validate").With(zap.String("path", path))

	rows, err := factrepository.ReadCSV(path)
	if err != nil {
		return err
	}

	var refs validationservice.References
	if idx, err := deps.Dimensions.Build(ctx); err != nil {
		log.Warn("dimensions unavailable, skipping reference checks", zap.Error(err))
	} else {
		refs = idx
	}

	report := deps.Validator.Validate(rows, refs)
	checksum := factservice.Checksum(rows)
	if last, err := deps.Recorder.LatestSucceeded(ctx); err == nil {
		if last.Checksum == checksum {
			log.Info("fact table matches the last recorded run", zap.String("run_id", last.ID.String()))
		} else {
			log.Warn("fact table differs from the last recorded run",
				zap.String("run_id", last.ID.String()),
				zap.String("recorded", last.Checksum),
				zap.String("actual", checksum),
			)
		}
	}

	if reportPath != "" {
		if err := validationservice.WriteJSON(reportPath, report); err != nil {
			return err
		}
	}
	out, err := json.MarshalIndent(report.Tally, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if strict && !report.Clean() {
		return fmt.Errorf("%w: %d discrepancies, %d overshoots, %d negative paid", errValidationFailed,
			report.Tally.Discrepancy, report.Tally.Overshoot, report.Tally.NegativePaid)
	}
	return nil
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
