package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"llmcrawl/internal/cache"
	"llmcrawl/internal/config"
	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/formatter"
	"llmcrawl/internal/llm"
	"llmcrawl/internal/logger"
	"llmcrawl/internal/model"
	"llmcrawl/internal/notify"
	"llmcrawl/internal/scraper"
	_ "llmcrawl/internal/sites/facebook"
	_ "llmcrawl/internal/sites/generic"
)

var version = "dev"

func main() {
	var rootCmd = &cobra.Command{
		Use:     "llmcrawl [URL]",
		Short:   "Crawl a page in a real browser and extract structured records with an LLM",
		Version: version,
		Long: `llmcrawl opens a page in Chromium (or fetches it over HTTP), cleans it
into markdown and asks an LLM to turn it into JSON records matching a schema.
Without a URL the site preset's default page is crawled.`,
		Example: `  # Crawl the default Facebook group with the stored browser profile
  llmcrawl --user-data-dir ./chrome_profile

  # Another group, results as CSV
  llmcrawl -o posts.csv https://www.facebook.com/groups/123456789/

  # Any page, free-form blocks, with OpenAI
  llmcrawl --site generic --provider openai/gpt-4o-mini https://go.dev/blog

  # Selector based extraction, schema generated once from a sample
  llmcrawl --strategy css --css-sample story.html

  # Show resolved settings
  llmcrawl --dump-config`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}

	config.RegisterFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), args)
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	preset, ok := scraper.Get(cfg.Site)
	if !ok {
		return fmt.Errorf("%w: %s (available: %s)", scraper.ErrUnknownSite, cfg.Site, strings.Join(scraper.Names(), ", "))
	}
	opts := scraper.Resolve(preset)
	if err := cfg.Apply(&opts); err != nil {
		return err
	}

	if cfg.DumpConfig {
		pp.Fprintln(os.Stderr, cfg.Masked())
		pp.Fprintln(os.Stderr, opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	strategy, usage, err := buildStrategy(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	opts.Run.ExtractionStrategy = strategy

	var store cache.Store
	if opts.Run.CacheMode.CanRead() || opts.Run.CacheMode.CanWrite() {
		store, err = cache.Open(ctx, cfg.CacheDSN)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
	}

	c := crawler.New(crawler.Options{
		Fetcher: cfg.Fetcher,
		Browser: opts.Browser,
		Timeout: opts.Run.PageTimeout,
		Cache:   store,
		Logger:  log,
	})
	if err := c.Start(ctx); err != nil {
		if store != nil {
			store.Close()
		}
		return err
	}
	defer c.Close()

	log.Info("crawling", "site", preset.Name(), "url", opts.URL, "strategy", strategy.Name(), "provider", opts.Provider)
	results, err := c.Run(ctx, opts.URL, opts.Run)
	if err != nil {
		return fmt.Errorf("failed to crawl: %w", err)
	}

	records, failures := report(os.Stdout, results, usage, cfg.Format, cfg.Preview)

	all, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if records == nil {
		all = []byte("[]")
	}

	if cfg.Output != "" {
		if err := writeOutput(cfg.Output, all, cfg.Format); err != nil {
			return err
		}
		log.Info("output written", "file", cfg.Output, "items", len(records))
	}

	if cfg.Notify {
		if err := sendNotification(cfg, opts.URL, all, failures, usage.Total()); err != nil {
			log.Warn("notification failed", "error", err)
		}
	}
	return nil
}

// buildStrategy returns the extraction strategy and the usage it records.
func buildStrategy(ctx context.Context, cfg *config.Config, opts scraper.Options, log *logger.Logger) (extraction.Strategy, *extraction.Usage, error) {
	if cfg.Strategy == "css" {
		s, err := cssStrategy(ctx, cfg, opts, log)
		return s, &extraction.Usage{}, err
	}

	client, err := llm.NewClient(cfg.LLM(opts), llm.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	s, err := extraction.NewLLMStrategy(client, cfg.Extraction(opts), log)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Usage(), nil
}

func cssStrategy(ctx context.Context, cfg *config.Config, opts scraper.Options, log *logger.Logger) (*extraction.CSSStrategy, error) {
	var (
		schema *extraction.CSSSchema
		err    error
	)
	if cfg.CSSSchema != "" {
		schema, err = extraction.LoadCSSSchema(cfg.CSSSchema)
		if err != nil {
			return nil, err
		}
	} else {
		sample, err := os.ReadFile(cfg.CSSSample)
		if err != nil {
			return nil, fmt.Errorf("failed to read sample html: %w", err)
		}
		client, err := llm.NewClient(cfg.LLM(opts), llm.WithLogger(log))
		if err != nil {
			return nil, err
		}
		query := opts.SchemaQuery
		if query == "" || cfg.IsSet("instruction") {
			query = opts.Instruction
		}
		schema, err = extraction.GenerateCSSSchema(ctx, client, string(sample), query)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Generated CSS schema:\n%s\n", schema)
	}
	return extraction.NewCSSStrategy(schema)
}

func writeOutput(path string, records []byte, format string) error {
	out, err := formatter.Format(records, format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func sendNotification(cfg *config.Config, url string, records []byte, failures []string, usage llm.Usage) error {
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		return tg.SendFailure(url, strings.Join(failures, "; "), usage)
	}
	posts, err := model.DecodePosts(records)
	if err != nil {
		return errors.Join(err, tg.SendFailure(url, err.Error(), usage))
	}
	return tg.SendSummary(url, posts, usage)
}
