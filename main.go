package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crawld/internal/config"
	"crawld/internal/crawl"
	"crawld/internal/fetch"
	"crawld/internal/logger"
	"crawld/internal/notify"
	"crawld/internal/pagedump"
	"crawld/internal/sched"
	"crawld/internal/source"
	"crawld/internal/store"
)

var version = "dev"

var (
	configPath string
	dbPath     string

	crawlSourceID int64
	crawlAll      bool

	inspectSelector string
	inspectRendered bool
	inspectFormat   string

	listSourceID int64
	listLimit    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "crawld",
		Short:   "A config-driven web-scraping scheduler",
		Version: version,
		Long: `crawld periodically fetches configured pages (plain HTTP or headless
browser rendered), extracts structured items via per-source CSS
selectors, deduplicates them against its store, prunes records that
disappeared upstream and reschedules itself per source.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "crawld.yml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl cycle for a source (or all active sources)",
		RunE:  runCrawl,
	}
	crawlCmd.Flags().Int64Var(&crawlSourceID, "source", 0, "Source ID to crawl")
	crawlCmd.Flags().BoolVar(&crawlAll, "all", false, "Crawl every active source")

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the self-rescheduling crawl scheduler until interrupted",
		RunE:  runDaemon,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect URL",
		Short: "Fetch a page and dump it for selector debugging",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	inspectCmd.Flags().StringVarP(&inspectSelector, "selector", "s", "", "CSS selector to cut the page down to")
	inspectCmd.Flags().BoolVar(&inspectRendered, "rendered", false, "Fetch through the headless browser")
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "markdown", "Output format (html, text, markdown)")

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE:  runSources,
	}

	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "List recently collected items for a source",
		RunE:  runItems,
	}
	itemsCmd.Flags().Int64Var(&listSourceID, "source", 0, "Source ID")
	itemsCmd.Flags().IntVar(&listLimit, "limit", 20, "Max rows")
	itemsCmd.MarkFlagRequired("source")

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent crawl log entries",
		RunE:  runLogs,
	}
	logsCmd.Flags().Int64Var(&listSourceID, "source", 0, "Source ID (0 for all)")
	logsCmd.Flags().IntVar(&listLimit, "limit", 20, "Max rows")

	rootCmd.AddCommand(crawlCmd, daemonCmd, inspectCmd, sourcesCmd, itemsCmd, logsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a command needs.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store *store.Store
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: st}, nil
}

func (a *app) close() {
	a.store.Close()
	a.log.Sync()
}

func (a *app) newRunner(queue crawl.Queue) *crawl.Runner {
	var notifier notify.Notifier = &notify.LogNotifier{Log: a.log}
	if a.cfg.WebhookURL != "" {
		notifier = notify.Multi(notifier, notify.NewWebhookNotifier(a.cfg.WebhookURL))
	}

	reconciler := crawl.NewReconciler(a.store, a.log, a.cfg.ReconcileThreshold)
	return crawl.NewRunner(a.store, queue, reconciler, a.log,
		crawl.WithNotifier(notifier),
		crawl.WithRetryDelay(a.cfg.RetryDelay()),
		crawl.WithFetchOptions(fetch.Options{
			UserAgent: a.cfg.UserAgent,
			Timeout:   a.cfg.FetchTimeout(),
			Settle:    a.cfg.BrowserSettle(),
		}),
	)
}

// nopQueue discards reschedules; one-shot crawls must not chain.
type nopQueue struct{}

func (nopQueue) Enqueue(int64, time.Duration) {}

func runCrawl(cmd *cobra.Command, _ []string) error {
	if crawlSourceID == 0 && !crawlAll {
		return fmt.Errorf("either --source or --all is required")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	runner := a.newRunner(nopQueue{})

	ids := []int64{crawlSourceID}
	if crawlAll {
		sources, err := a.store.ActiveSources(ctx)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, src := range sources {
			ids = append(ids, src.ID)
		}
	}

	failed := 0
	for _, id := range ids {
		row := runner.RunCycle(ctx, id)
		if row.Status == store.StatusSuccess {
			fmt.Printf("source %d: ok, %d new items (%.1fs)\n", id, row.ItemsCollected, row.DurationSeconds)
		} else {
			failed++
			fmt.Printf("source %d: failed: %s\n", id, row.ErrorMessage)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cycles failed", failed, len(ids))
	}
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.SourcesFile != "" {
		if err := seedSources(ctx, a); err != nil {
			return err
		}
	}

	scheduler := sched.New(nil, a.log,
		sched.WithTick(a.cfg.SchedulerTick()),
		sched.WithWorkers(a.cfg.SchedulerWorkers))
	scheduler.SetRunner(a.newRunner(scheduler))

	if err := scheduler.Bootstrap(ctx, a.store); err != nil {
		return err
	}

	a.log.Info("daemon started",
		logger.String("db", a.cfg.DatabasePath),
		logger.Int("workers", a.cfg.SchedulerWorkers))

	scheduler.Run(ctx)
	a.log.Info("daemon stopped")
	return nil
}

func seedSources(ctx context.Context, a *app) error {
	seed, err := source.LoadSeed(a.cfg.SourcesFile)
	if err != nil {
		return err
	}
	for _, src := range seed.Sources {
		if src.IntervalMins == 0 {
			src.IntervalMins = a.cfg.DefaultIntervalMinutes
		}
		if err := a.store.UpsertSource(ctx, src); err != nil {
			return err
		}
	}
	a.log.Info("sources seeded", logger.Int("count", len(seed.Sources)))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	out, err := pagedump.Dump(cmd.Context(), pagedump.Request{
		URL:      args[0],
		Selector: inspectSelector,
		Rendered: inspectRendered,
		Format:   inspectFormat,
	}, fetch.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Settle:    cfg.BrowserSettle(),
	})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runSources(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	sources, err := a.store.AllSources(cmd.Context())
	if err != nil {
		return err
	}
	for _, src := range sources {
		state := "inactive"
		if src.Active {
			state = "active"
		}
		last := "never"
		if src.LastCrawledAt.Valid {
			last = src.LastCrawledAt.Time.Format(time.RFC3339)
		}
		fmt.Printf("%d\t%s\t%s\t%s\tevery %dm\tlast: %s\n",
			src.ID, src.Name, src.CrawlerType, state, src.IntervalMins, last)
	}
	return nil
}

func runItems(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.store.RecentItems(cmd.Context(), listSourceID, listLimit)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%s\t%s\t%s\n",
			item.CollectedAt.Format("2006-01-02 15:04"), item.URL, item.Payload)
	}
	return nil
}

func runLogs(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	logs, err := a.store.RecentCrawlLogs(cmd.Context(), listSourceID, listLimit)
	if err != nil {
		return err
	}
	for _, row := range logs {
		line := fmt.Sprintf("%s\tsource=%d\t%s\titems=%d\t%.1fs",
			row.StartedAt.Format("2006-01-02 15:04:05"),
			row.SourceID, row.Status, row.ItemsCollected, row.DurationSeconds)
		if row.ErrorMessage != "" {
			line += "\t" + row.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}
