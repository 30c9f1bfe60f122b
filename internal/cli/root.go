package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time.
var Version = "dev"

// NewRootCommand builds the taskchain command tree.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "taskchain",
		Short:         "Run chains of tasks on a shared worker pool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config-file", "c", "", "YAML config file.")
	if err := BindFlags(root.PersistentFlags(), v); err != nil {
		panic(err)
	}

	root.AddCommand(newDemoCommand(v, &cfgFile))
	root.AddCommand(newConfigCommand(v, &cfgFile))
	return root
}

// Execute runs the root command with signal handling and returns the exit
// code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func newDemoCommand(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Replay the reference chain and report what never ran",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Load(v, *cfgFile)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newConfigCommand(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Load(v, *cfgFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", cfg)
			return err
		},
	}
}

func runDemo(ctx context.Context, cfg Config, stdout, stderr io.Writer) error {
	logger, closeLog, err := NewLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	var reg *prometheus.Registry
	var ln net.Listener
	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if ln, err = net.Listen("tcp", cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if ln != nil {
		g.Go(func() error {
			return serveMetrics(gctx, ln, cfg.Metrics.Path, reg, logger)
		})
	}

	var result DemoResult
	g.Go(func() error {
		// The metrics server stops with the demo.
		defer cancel()
		var runErr error
		result, runErr = RunDemo(gctx, cfg, reg, logger)
		return runErr
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Debug("demo result", zap.Any("result", result))
	fmt.Fprintf(stdout, "never ran: %v\n", result.NeverRan)
	fmt.Fprintf(stdout, "events: %v\n", result.Events)
	return nil
}
