// Command ragsafe-ingest crawls a compliance framework documentation site,
// chunks and embeds the pages, and writes them to the control index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	applog "github.com/complyra/ragsafe/internal/log"
	"github.com/complyra/ragsafe/internal/models"
	cfgPkg "github.com/complyra/ragsafe/pkg/config"
	"github.com/complyra/ragsafe/pkg/index"
	"github.com/complyra/ragsafe/pkg/ingest"
	"github.com/complyra/ragsafe/pkg/llm"
)

type cliFlags struct {
	configPath string
	docsURL    string
	framework  string
	tenant     string
	maxDepth   int
	rateLimit  float64
}

func main() {
	flags := parseFlags()

	if flags.docsURL == "" {
		fmt.Fprintln(os.Stderr, "usage: ragsafe-ingest -docs-url <url> -framework <name> -tenant <id>")
		os.Exit(2)
	}

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", "Path to config file")
	flag.StringVar(&flags.docsURL, "docs-url", "", "Framework documentation URL to crawl")
	flag.StringVar(&flags.framework, "framework", "", "Framework name to tag chunks with (e.g. SOC2)")
	flag.StringVar(&flags.tenant, "tenant", "", "Tenant ID to store chunks under")
	flag.IntVar(&flags.maxDepth, "max-depth", 0, "Maximum crawl depth (overrides config)")
	flag.Float64Var(&flags.rateLimit, "rate-limit", 0, "Crawl rate limit in pages/sec (overrides config)")
	flag.Parse()
	return flags
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags cliFlags) error {
	cfg, err := cfgPkg.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.maxDepth > 0 {
		cfg.Ingest.MaxDepth = flags.maxDepth
	}
	if flags.rateLimit > 0 {
		cfg.Ingest.RateLimit = flags.rateLimit
	}

	logger := applog.New(applog.Config{})
	ctx := context.Background()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbedModel,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ix, err := index.New(ctx, index.Config{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize index: %w", err)
	}
	defer ix.Close()

	var fetchedCount int32
	fetcher, err := ingest.NewFetcher(ingest.FetcherConfig{
		BaseURL:   flags.docsURL,
		MaxDepth:  cfg.Ingest.MaxDepth,
		RateLimit: cfg.Ingest.RateLimit,
		OnProgress: func(url string) {
			atomic.AddInt32(&fetchedCount, 1)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	chunker := ingest.NewChunker(ingest.ChunkerConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		Framework:    flags.framework,
		TenantID:     flags.tenant,
	})

	ingestor := ingest.NewIngestor(fetcher, chunker, embedder, ix, logger)

	color.Blue("\nIngesting %s\n", flags.docsURL)

	crawlBar := getProgressBar(-1, " Crawling framework pages...")
	startTime := time.Now()
	crawlDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-crawlDone:
				return
			case <-ticker.C:
			}
			count := atomic.LoadInt32(&fetchedCount)
			crawlBar.Set(int(count))
			if count > 0 {
				elapsed := time.Since(startTime).Seconds()
				crawlBar.Describe(color.BlueString(
					"Crawling framework pages (%.1f pages/sec)", float64(count)/elapsed))
			}
		}
	}()

	embedBar := getProgressBar(-1, " Embedding chunks...")
	ingestor.OnChunk = func(chunk models.DocumentChunk) {
		embedBar.Add(1)
	}

	stored, err := ingestor.Run(ctx, flags.docsURL)
	close(crawlDone)
	crawlBar.Finish()
	embedBar.Finish()
	if err != nil {
		return err
	}

	color.Green("\n✓ Stored %d chunks\n", stored)
	if flags.tenant != "" {
		color.Yellow("Remember to invalidate cached retrievals for tenant %q.", flags.tenant)
	}
	return nil
}
