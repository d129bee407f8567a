// Command ingest runs the document ingestion pipeline: scan the remote
// space, process files into capsules and classifications, report.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nordlicht-labs/corpusgraph/internal/config"
	"github.com/nordlicht-labs/corpusgraph/internal/pipeline"
	"github.com/nordlicht-labs/corpusgraph/internal/scan"
	"github.com/nordlicht-labs/corpusgraph/internal/server"
	"github.com/nordlicht-labs/corpusgraph/internal/util"
	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
	"github.com/nordlicht-labs/corpusgraph/pkg/ai/ollama"
	"github.com/nordlicht-labs/corpusgraph/pkg/ai/openai"
	"github.com/nordlicht-labs/corpusgraph/pkg/capsule"
	"github.com/nordlicht-labs/corpusgraph/pkg/classify"
	"github.com/nordlicht-labs/corpusgraph/pkg/extract"
	"github.com/nordlicht-labs/corpusgraph/pkg/graphstore"
	neo4jstore "github.com/nordlicht-labs/corpusgraph/pkg/graphstore/neo4j"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger/console"
	"github.com/nordlicht-labs/corpusgraph/pkg/remote"
	"github.com/nordlicht-labs/corpusgraph/pkg/taxonomy"
)

// Exit codes: 0 success or partial success after cancel, 1 fatal
// configuration or auth error, 2 unrecoverable remote or graph error.
const (
	exitOK     = 0
	exitConfig = 1
	exitRemote = 2
)

type flags struct {
	spaceID      string
	batchSize    int
	maxFiles     int
	noResume     bool
	noGraph      bool
	steps        string
	progressAddr string
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Scan a remote document space, summarize and classify its files, and build the category graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	root.Flags().StringVar(&f.spaceID, "space-id", "", "target space id (overrides SPACE_ID)")
	root.Flags().IntVar(&f.batchSize, "batch-size", 0, "files per batch (overrides BATCH_SIZE)")
	root.Flags().IntVar(&f.maxFiles, "max-files", 0, "cap on files processed this run")
	root.Flags().BoolVar(&f.noResume, "no-resume", false, "re-process files already in the journal or graph")
	root.Flags().BoolVar(&f.noGraph, "no-graph", false, "dry run: skip graph upserts")
	root.Flags().StringVar(&f.steps, "steps", "1,2,3", "comma-separated phases to run")
	root.Flags().StringVar(&f.progressAddr, "progress-addr", "", "serve progress over HTTP on this address (e.g. :8090)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("Run failed", "err", err)
		os.Exit(codeFor(err))
	}
}

func run(ctx context.Context, f flags) error {
	util.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		// Logger not initialized yet for config failures.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
	}))

	if f.spaceID != "" {
		cfg.SpaceID = f.spaceID
	}
	if f.batchSize > 0 {
		cfg.BatchSize = f.batchSize
	}

	steps, err := parseSteps(f.steps)
	if err != nil {
		return configErr(err)
	}

	client := remote.NewClient(remote.NewClientParams{
		BaseURL:      cfg.RemoteBaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UnionID:      cfg.UnionID,
		AuthHeader:   cfg.AuthHeader,

		MaxRetries:      cfg.MaxRetries,
		RetryBase:       cfg.RetryBase,
		RetryCap:        cfg.RetryCap,
		MetadataTimeout: cfg.MetadataTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	})

	aiClient, err := buildAIClient(cfg)
	if err != nil {
		return configErr(err)
	}

	tree, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		return configErr(err)
	}

	var store graphstore.Store
	if !f.noGraph {
		if err := cfg.RequireGraph(); err != nil {
			return configErr(err)
		}
		s, err := neo4jstore.NewStore(ctx, neo4jstore.NewStoreParams{
			URI:      cfg.GraphURI,
			Username: cfg.GraphUser,
			Password: cfg.GraphPassword,
		})
		if err != nil {
			return err
		}
		defer s.Close(context.Background())
		store = s
	}

	tracker := &pipeline.Tracker{}
	if f.progressAddr != "" {
		server.NewProgressServer(tracker, f.progressAddr).Start(ctx)
	}

	pipe := pipeline.New(pipeline.Params{
		Config: cfg,
		Enumerator: scan.NewEnumerator(scan.NewEnumeratorParams{
			Lister:     client,
			SpaceID:    cfg.SpaceID,
			MaxDepth:   cfg.MaxDepth,
			MaxRetries: cfg.MaxRetries,
		}),
		Downloader: client,
		Extractor: extract.NewExtractor(extract.Options{
			MaxChars:      cfg.MaxChars,
			MaxImageBytes: cfg.MaxImageBytes,
			PDFMaxPages:   cfg.PDFMaxPages,
			ExcelNRows:    cfg.ExcelNRows,
		}),
		Capsules:   capsule.NewGenerator(aiClient),
		Classifier: classify.NewClassifier(aiClient, tree),
		Store:      store,
		Progress:   tracker,

		Resume:   !f.noResume,
		MaxFiles: f.maxFiles,
	})

	if err := pipe.Run(ctx, steps); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted, partial results flushed")
			return nil
		}
		return err
	}
	return nil
}

func buildAIClient(cfg *config.Config) (ai.Client, error) {
	switch cfg.AIAdapter {
	case "openai":
		if cfg.AIChatKey == "" {
			return nil, fmt.Errorf("AI_CHAT_KEY is required for the openai adapter")
		}
		return openai.NewClient(openai.NewClientParams{
			BaseURL:    cfg.AIChatURL,
			APIKey:     cfg.AIChatKey,
			ChatModel:  cfg.AIChatModel,
			ImageModel: cfg.AIImageModel,
			Timeout:    cfg.LLMTimeout,
		}), nil
	case "ollama":
		return ollama.NewClient(ollama.NewClientParams{
			BaseURL:    cfg.AIChatURL,
			APIKey:     cfg.AIChatKey,
			ChatModel:  cfg.AIChatModel,
			ImageModel: cfg.AIImageModel,
			Timeout:    cfg.LLMTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q (want openai or ollama)", cfg.AIAdapter)
	}
}

func parseSteps(csv string) ([]int, error) {
	var steps []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 3 {
			return nil, fmt.Errorf("invalid step %q (want 1, 2 or 3)", part)
		}
		steps = append(steps, n)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps selected")
	}
	return steps, nil
}

// configErrSentinel lets main distinguish setup mistakes (exit 1) from
// runtime remote/graph failures (exit 2).
var configErrSentinel = errors.New("configuration error")

func configErr(err error) error {
	return fmt.Errorf("%w: %v", configErrSentinel, err)
}

func codeFor(err error) int {
	switch {
	case errors.Is(err, configErrSentinel), errors.Is(err, remote.ErrAuth):
		return exitConfig
	default:
		return exitRemote
	}
}
