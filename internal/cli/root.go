// Package cli wires configuration, the embedder and the index into the
// docrag command tree.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	"docrag/internal/embedding/openai"
	"docrag/internal/logger"
	"docrag/internal/runlog"
	"docrag/internal/service"
	"docrag/internal/vectorstore/memory"
)

var (
	cfgPath  string
	tierFlag string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Memory-bounded document ingestion and retrieval",
	Long: `rag ingests already-extracted document text into a bounded vector index
and assembles size-limited contexts for a language model.

Limits (file size, pages, chunks, batch size) come from the selected tier.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./config.yaml or ~/.config/docrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tierFlag, "tier", "", "limit tier (overrides config and "+config.TierEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app holds the components shared by the subcommands.
type app struct {
	cfg      *config.AppConfig
	profile  domain.LimitProfile
	embedder embedding.Embedder
	index    *memory.Index
}

func loadConfig() (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if t := strings.TrimSpace(tierFlag); t != "" {
		cfg.Tier = t
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	idx, err := service.OpenIndex(cfg.Index.Dir, emb.Dimension())
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	logger.Debug("components ready", "tier", profile.Name, "embedder", emb.Name(), "index", cfg.Index.Dir, "entries", idx.Len())
	return &app{cfg: cfg, profile: profile, embedder: emb, index: idx}, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

// ingestor builds the writer for the index. The returned func releases the
// run history database, if one was opened.
func (a *app) ingestor() (*service.Ingestor, func(), error) {
	var opts []service.Option
	closer := func() {}
	if a.cfg.RunLog.Path != "" {
		store, err := runlog.Open(a.cfg.RunLog.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("run history enabled", "path", store.Path())
		opts = append(opts, service.WithRecorder(store))
		closer = func() { _ = store.Close() }
	}
	return service.NewIngestor(a.profile, a.embedder, a.index, a.cfg.Index.Dir, opts...), closer, nil
}

func (a *app) assembler() *service.Assembler {
	var opts []service.AssemblerOption
	if a.cfg.Retrieval.Delimiter != "" {
		opts = append(opts, service.WithDelimiter(a.cfg.Retrieval.Delimiter))
	}
	return service.NewAssembler(a.embedder, a.index, opts...)
}
