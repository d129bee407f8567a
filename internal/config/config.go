package config

import (
	"fmt"
	"time"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
)

// ScanMode selects what phase 1 enumerates.
type ScanMode string

const (
	ScanModeFull    ScanMode = "full"
	ScanModeFolders ScanMode = "folders"
)

// Config is the immutable process-wide configuration, built once from the
// environment at startup and passed down the call chain by argument. No
// component reads the environment after Load returns.
type Config struct {
	// Remote repository.
	RemoteBaseURL string
	ClientID      string
	ClientSecret  string
	UnionID       string
	SpaceID       string
	AuthHeader    string

	// Graph store.
	GraphURI      string
	GraphUser     string
	GraphPassword string

	// LLM backends.
	AIAdapter    string
	AIChatURL    string
	AIChatKey    string
	AIChatModel  string
	AIImageModel string

	// Pipeline.
	ScanMode     ScanMode
	DataDir      string
	TaxonomyPath string
	Debug        bool

	// Tunables.
	MaxRetries      int
	RetryBase       time.Duration
	RetryCap        time.Duration
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	LLMTimeout      time.Duration
	MaxDepth        int
	BatchSize       int
	MaxChars        int
	MaxImageBytes   int64
	PDFMaxPages     int
	ExcelNRows      int
}

// Load reads the environment into a Config. The returned error names every
// missing required variable; callers treat it as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		RemoteBaseURL: util.GetEnv("REMOTE_BASE_URL"),
		ClientID:      util.GetEnv("CLIENT_ID"),
		ClientSecret:  util.GetEnv("CLIENT_SECRET"),
		UnionID:       util.GetEnv("TEST_UNION_ID"),
		SpaceID:       util.GetEnv("SPACE_ID"),
		AuthHeader:    util.GetEnvString("REMOTE_AUTH_HEADER", "x-acs-dingtalk-access-token"),

		GraphURI:      util.GetEnv("GRAPH_URI"),
		GraphUser:     util.GetEnv("GRAPH_USER"),
		GraphPassword: util.GetEnv("GRAPH_PASSWORD"),

		AIAdapter:    util.GetEnvString("AI_ADAPTER", "openai"),
		AIChatURL:    util.GetEnv("AI_CHAT_URL"),
		AIChatKey:    util.GetEnv("AI_CHAT_KEY"),
		AIChatModel:  util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
		AIImageModel: util.GetEnvString("AI_IMAGE_MODEL", "gpt-4o-mini"),

		ScanMode:     ScanMode(util.GetEnvString("SCAN_MODE", string(ScanModeFull))),
		DataDir:      util.GetEnvString("DATA_DIR", "data_storage"),
		TaxonomyPath: util.GetEnv("TAXONOMY_PATH"),
		Debug:        util.GetEnvBool("DEBUG", false),

		MaxRetries:      util.GetEnvInt("MAX_RETRIES", 3),
		RetryBase:       time.Duration(util.GetEnvInt("RETRY_BASE_MS", 1000)) * time.Millisecond,
		RetryCap:        time.Duration(util.GetEnvInt("RETRY_CAP_MS", 10000)) * time.Millisecond,
		MetadataTimeout: time.Duration(util.GetEnvInt("TIMEOUT_META_S", 30)) * time.Second,
		DownloadTimeout: time.Duration(util.GetEnvInt("TIMEOUT_DOWNLOAD_S", 60)) * time.Second,
		LLMTimeout:      time.Duration(util.GetEnvInt("TIMEOUT_LLM_S", 180)) * time.Second,
		MaxDepth:        util.GetEnvInt("MAX_DEPTH", 10),
		BatchSize:       util.GetEnvInt("BATCH_SIZE", 50),
		MaxChars:        util.GetEnvInt("MAX_CHARS", 4000),
		MaxImageBytes:   util.GetEnvInt64("MAX_IMAGE_BYTES", 20<<20),
		PDFMaxPages:     util.GetEnvInt("PDF_MAX_PAGES", 3),
		ExcelNRows:      util.GetEnvInt("EXCEL_NROWS", 20),
	}

	if cfg.ScanMode != ScanModeFull && cfg.ScanMode != ScanModeFolders {
		return nil, fmt.Errorf("config: invalid SCAN_MODE %q", cfg.ScanMode)
	}

	missing := []string{}
	for _, required := range []struct {
		key   string
		value string
	}{
		{"REMOTE_BASE_URL", cfg.RemoteBaseURL},
		{"CLIENT_ID", cfg.ClientID},
		{"CLIENT_SECRET", cfg.ClientSecret},
		{"SPACE_ID", cfg.SpaceID},
	} {
		if required.value == "" {
			missing = append(missing, required.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// RequireGraph verifies the graph store settings are present. It is only
// called when the run actually writes to the graph (not for --no-graph).
func (c *Config) RequireGraph() error {
	if c.GraphURI == "" {
		return fmt.Errorf("config: GRAPH_URI is required unless --no-graph is set")
	}
	return nil
}
