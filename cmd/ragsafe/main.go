package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	applog "github.com/complyra/ragsafe/internal/log"
	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/pkg/audit"
	"github.com/complyra/ragsafe/pkg/cache"
	cfgPkg "github.com/complyra/ragsafe/pkg/config"
	"github.com/complyra/ragsafe/pkg/index"
	"github.com/complyra/ragsafe/pkg/llm"
	"github.com/complyra/ragsafe/pkg/pipeline"
	"github.com/complyra/ragsafe/pkg/retrieval"
	"github.com/complyra/ragsafe/pkg/verify"
	"github.com/complyra/ragsafe/server"
)

type cliFlags struct {
	configPath string
	serve      bool
	port       string
	tenant     string
	frameworks string
	noCache    bool
	jsonLogs   bool
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", "Path to config file")
	flag.BoolVar(&flags.serve, "serve", false, "Run the HTTP server instead of the interactive prompt")
	flag.StringVar(&flags.port, "port", "", "HTTP server port (overrides config)")
	flag.StringVar(&flags.tenant, "tenant", "", "Tenant ID to scope queries to")
	flag.StringVar(&flags.frameworks, "frameworks", "", "Comma-separated framework filter (e.g. SOC2,ISO27001)")
	flag.BoolVar(&flags.noCache, "no-cache", false, "Bypass the query and response caches")
	flag.BoolVar(&flags.jsonLogs, "json-logs", false, "Emit logs as JSON")
	flag.Parse()
	return flags
}

func run(flags cliFlags) error {
	cfg, err := cfgPkg.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}
	if flags.port != "" {
		cfg.Server.Port = flags.port
	}

	logger := applog.New(applog.Config{JSON: flags.jsonLogs})
	ctx := context.Background()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbedModel,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := llm.NewGenerator(llm.GeneratorConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
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

	engine := retrieval.NewEngine(retrieval.Config{
		TopK:             cfg.Retrieval.TopK,
		RerankLimit:      cfg.Retrieval.RerankLimit,
		SemanticWeight:   cfg.Retrieval.SemanticWeight,
		KeywordWeight:    cfg.Retrieval.KeywordWeight,
		MinRelevance:     cfg.Retrieval.MinRelevance,
		FallbackResults:  cfg.Retrieval.FallbackResults,
		ConfidenceHigh:   cfg.Retrieval.ConfidenceHigh,
		ConfidenceMedium: cfg.Retrieval.ConfidenceMedium,
	}, embedder, ix.Vector(), ix.Keyword(), cache.NewQueryCache(cfg.Cache.TTL.Std()), logger)

	verifier := verify.New(verify.Config{
		ApproveThreshold: cfg.Verify.ApproveThreshold,
		ReviewThreshold:  cfg.Verify.ReviewThreshold,
		HighRiskTerms:    cfg.Verify.HighRiskTerms,
		QuoteLength:      cfg.Verify.QuoteLength,
	}, logger)

	auditStore, err := audit.NewPostgresStore(ctx, cfg.Database.URL, "")
	if err != nil {
		return fmt.Errorf("failed to initialize audit store: %w", err)
	}
	defer auditStore.Close()
	auditLog := audit.NewLog(auditStore, cfg.Audit.ApproveThreshold, logger)

	semantic := cache.NewSemanticCache(cache.SemanticCacheConfig{
		Capacity:   cfg.Cache.SemanticCapacity,
		Threshold:  cfg.Cache.SemanticThreshold,
		MinQuality: cfg.Cache.SemanticMinQuality,
	})

	service := pipeline.NewService(pipeline.Config{
		BatchConcurrency: cfg.Pipeline.BatchConcurrency,
	}, engine, generator, verifier, auditLog, semantic, logger)

	if flags.serve {
		srv := server.New(server.Config{Port: cfg.Server.Port}, service, auditLog, logger)
		return srv.ListenAndServe()
	}

	return interactive(ctx, service, flags)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func interactive(ctx context.Context, service *pipeline.Service, flags cliFlags) error {
	filters := models.Filters{TenantID: flags.tenant}
	if flags.frameworks != "" {
		for _, fw := range strings.Split(flags.frameworks, ",") {
			if fw = strings.TrimSpace(fw); fw != "" {
				filters.Frameworks = append(filters.Frameworks, fw)
			}
		}
	}

	color.Cyan("\nAsk about your compliance controls (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}

		spinner := getSpinner(" Retrieving and verifying...")
		answer, err := service.Answer(ctx, query, filters, !flags.noCache)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		fmt.Print("\n")
		assistantPrompt("Assistant: %s\n", answer.Response)

		switch answer.Confidence {
		case models.ConfidenceHigh:
			color.Green("\nConfidence: high")
		case models.ConfidenceMedium:
			color.Yellow("\nConfidence: medium")
		default:
			color.Red("\nConfidence: low")
		}

		if len(answer.Context.Citations) > 0 {
			color.Blue("Sources:")
			for i, citation := range answer.Context.Citations {
				fmt.Printf("  [%d] %s\n", i+1, citation)
			}
		}
		if answer.FromCache {
			color.Blue("(answered from response cache)")
		}
		if answer.RequiresReview {
			color.Yellow("This answer is flagged for manual compliance review.")
		}
	}

	return nil
}
