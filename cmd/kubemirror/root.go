package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tapcraft-io/kubemirror/internal/config"
	"github.com/tapcraft-io/kubemirror/internal/k8s"
	"github.com/tapcraft-io/kubemirror/internal/logger"
	"github.com/tapcraft-io/kubemirror/internal/tui"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	"k8s.io/client-go/dynamic"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// demoChurnInterval is how often the demo cluster creates or deletes a pod
const demoChurnInterval = 5 * time.Second

var (
	cfgFile  string
	headless bool
)

var rootCmd = &cobra.Command{
	Use:   "kubemirror",
	Short: "Live read-only mirror of Kubernetes resources",
	Long: `kubemirror lists and watches a set of Kubernetes resource kinds and keeps an
in-memory mirror of each, enriched with pod and node usage from the metrics API.
The mirror is browsed in a terminal UI or, with --headless, only exported as
Prometheus metrics.`,
	SilenceUsage: true,
	RunE:         run,
}

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List the contexts of the kubeconfig",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		contexts, err := k8s.GetContexts(cfg.KubeconfigPath)
		if err != nil {
			return fmt.Errorf("failed to read kubeconfig: %w", err)
		}
		for _, name := range contexts {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the resource kinds that can be mirrored",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tALIASES\tAPI VERSION\tNAMESPACED")
		for _, k := range k8s.Kinds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", k.Name, strings.Join(k.Aliases, ","), k.GVR.GroupVersion(), k.Namespaced)
		}
		_ = w.Flush()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kubemirror/config.yaml)")
	flags.String("kubeconfig", "", "path to the kubeconfig (default is $KUBECONFIG or $HOME/.kube/config)")
	flags.String("context", "", "kubeconfig context to use (default is the current context)")

	runFlags := rootCmd.Flags()
	runFlags.StringSlice("kinds", nil, "kinds to mirror, by name or alias (default is all)")
	runFlags.Bool("demo", false, "mirror a built-in sample cluster instead of a real one")
	runFlags.Bool("warm-start", true, "list every kind once concurrently before the watches settle")
	runFlags.Duration("usage-interval", 15*time.Second, "how often to poll the metrics API")
	runFlags.Duration("refresh-interval", 500*time.Millisecond, "how often the UI re-reads the mirror")
	runFlags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	runFlags.String("log-file", "", "log file (default is $HOME/.kubemirror/kubemirror.log)")
	runFlags.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (default is off)")
	runFlags.BoolVar(&headless, "headless", false, "run without the UI until interrupted, logging to stderr")

	_ = viper.BindPFlags(flags)
	_ = viper.BindPFlags(runFlags)

	rootCmd.AddCommand(contextsCmd, kindsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI unless headless
	logPath := cfg.LogFile
	if headless && !cmd.Flags().Changed("log-file") {
		logPath = ""
	}
	lg, closeLog, err := logger.Setup(cfg.LogLevel, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dyn, metrics, contextName, err := connect(ctx, cfg, lg)
	if err != nil {
		return err
	}

	registry := k8s.NewRegistry(dyn, cfg.SelectedKinds(), k8s.DefaultFeedOptions(), lg)
	registry.WarmStart = cfg.WarmStart
	registry.Start(ctx)

	go k8s.NewUsageProbe(metrics, registry, cfg.UsageInterval, lg).Run(ctx)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, lg)
	}

	lg.WithFields(log.Fields{
		"context": contextName,
		"kinds":   len(registry.Kinds()),
	}).Info("mirror started")

	if headless {
		<-ctx.Done()
	} else {
		p := tea.NewProgram(
			tui.NewModel(registry, contextName, cfg.RefreshInterval),
			tea.WithAltScreen(),
			tea.WithContext(ctx),
		)
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running program: %w", err)
		}
	}

	if !registry.Ready() {
		lg.Warn("mirror stopped before every kind finished its first snapshot")
	}
	lg.Info("mirror stopped")
	return nil
}

// connect returns the clients for a real cluster, or the in-memory demo
// cluster when cfg.Demo is set.
func connect(ctx context.Context, cfg *config.Config, lg log.FieldLogger) (dynamic.Interface, metricsclient.Interface, string, error) {
	if cfg.Demo {
		dyn, err := k8s.NewDemoClient()
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to build demo cluster: %w", err)
		}
		go k8s.RunDemoChurn(ctx, dyn, demoChurnInterval, lg)
		return dyn, k8s.NewDemoMetricsClient(dyn), "demo", nil
	}

	client, err := k8s.NewClient(cfg.KubeconfigPath, cfg.Context)
	if err != nil {
		return nil, nil, "", fmt.Errorf("error connecting to Kubernetes: %w (make sure kubectl is configured, or try --demo)", err)
	}
	return client.Dynamic, client.Metrics, client.Context, nil
}

func serveMetrics(ctx context.Context, addr string, lg log.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(watchcache.Metrics, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	lg.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.WithError(err).Error("metrics server failed")
	}
}
