// Package cli wires configuration, services and the worker into the
// eventworker command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"sjsage522/eventworker/config"
	"sjsage522/eventworker/internal/crawler"
	"sjsage522/eventworker/internal/metrics"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/services/ingest"
	"sjsage522/eventworker/services/worker"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// rootOptions holds the flags shared by every subcommand
type rootOptions struct {
	sourcesFile string
}

// runOptions holds the flags of the run command
type runOptions struct {
	*rootOptions
	source string
	dryRun bool
	format string
}

// extractOptions holds the flags of the extract command
type extractOptions struct {
	*rootOptions
	source string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "eventworker",
		Short: "Extract event listings and ingest new events",
		Long: `Renders configured event listing pages, extracts event cards with
per-source selector cascades and stores every event not seen before.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.sourcesFile, "sources", "", "YAML sources file (overrides SOURCES_FILE)")

	cmd.AddCommand(newRunCmd(opts), newExtractCmd(opts), newSourcesCmd(opts))
	return cmd
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run extraction and ingestion once for all or one source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "Only run the named source")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Keep records in memory and publish nothing")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	return cmd
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	opts := &extractOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Render and extract one source, printing the records as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "Source to extract (required)")
	cmd.MarkFlagRequired("source")
	return cmd
}

func newSourcesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd, root)
		},
	}
}

// loadConfig loads and validates the environment configuration
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg := config.LoadConfig()
	if opts.sourcesFile != "" {
		cfg.SourcesFile = opts.sourcesFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectSources loads the configured sources, narrowed to name when set
func selectSources(cfg *config.Config, name string) ([]crawler.SourceConfig, error) {
	sources, err := crawler.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return sources, nil
	}
	src, ok := crawler.FindSource(sources, name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return []crawler.SourceConfig{*src}, nil
}

func crawlerOptions(cfg *config.Config) crawler.Options {
	return crawler.Options{
		RenderTimeout: cfg.RenderTimeout,
		Wait:          cfg.RenderWait,
	}
}

// runPipeline is the run command logic
func runPipeline(cmd *cobra.Command, opts *runOptions) error {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	cfg, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}
	sources, err := selectSources(cfg, opts.source)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := logger.ForWorker()
	log.Info().
		Str("environment", cfg.Environment).
		Int("sources", len(sources)).
		Bool("dry_run", opts.dryRun).
		Msg("Starting event worker")

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}

	services, err := initializeServices(ctx, cfg, opts.dryRun)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	gate := ingest.NewGate(services.Store, services.Publisher, ingest.Options{
		Workers:        cfg.IngestWorkers,
		EmptySourceURL: cfg.EmptySourceURLPolicy,
	})
	crawlers := crawler.CreateCrawlers(sources, services.Renderer, crawlerOptions(cfg))

	result := worker.NewWorker(crawlers, gate).Run(ctx)
	if err := WriteRunResult(cmd.OutOrStdout(), result, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return runError(result)
}

// runError decides the exit status of a run. Render failures always fail the
// run; record failures only when retrying may recover them.
func runError(result worker.RunResult) error {
	if err := result.Err(); err != nil {
		return err
	}
	if !result.Retryable() {
		return nil
	}
	total := result.Total()
	return fmt.Errorf("%d records failed with retryable errors: %w", total.Failed, total.Err())
}

// runExtract is the extract command logic
func runExtract(cmd *cobra.Command, opts *extractOptions) error {
	cfg, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}
	sources, err := selectSources(cfg, opts.source)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c := crawler.NewEventCrawler(&sources[0], newRenderer(ctx, cfg), crawlerOptions(cfg))
	events, err := c.FetchEvents(ctx)
	if err != nil {
		return err
	}
	return WriteEvents(cmd.OutOrStdout(), events)
}

// runSources is the sources command logic
func runSources(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	sources, err := selectSources(cfg, "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, s := range sources {
		fmt.Fprintf(out, "%-16s %s\n", s.Name, s.ListingURL)
	}
	return nil
}

// serveMetrics exposes prometheus metrics until the returned func is called
func serveMetrics(addr string) func() {
	log := logger.ForWorker()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// Execute runs the CLI until it finishes or ctx is canceled
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
