package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values shared across commands
type config struct {
	// Storage
	backend           string
	dbPath            string
	indexPath         string
	firestoreProject  string
	firestoreDatabase string

	// Embedding
	embedding      string
	geminiProject  string
	geminiLocation string

	// Engine
	rankConfigPath string
	syncIndex      bool
	logLevel       string

	// Caller scope
	userID  string
	agentID string
	runID   string
	project string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Record store backend: sqlite or firestore",
			Value:       "sqlite",
			Sources:     cli.EnvVars("KIOKU_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Path to the SQLite database file",
			Value:       "kioku.db",
			Sources:     cli.EnvVars("KIOKU_DB"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "index",
			Usage:       "Path to the similarity index directory (empty keeps it in memory)",
			Sources:     cli.EnvVars("KIOKU_INDEX"),
			Destination: &cfg.indexPath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for the Firestore backend",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "rank-config",
			Usage:       "Path to a YAML file with ranking weights and half-life",
			Sources:     cli.EnvVars("KIOKU_RANK_CONFIG"),
			Destination: &cfg.rankConfigPath,
		},
		&cli.BoolFlag{
			Name:        "sync-index",
			Usage:       "Wait for index updates before acknowledging writes in serve mode (one-shot commands always wait)",
			Sources:     cli.EnvVars("KIOKU_SYNC_INDEX"),
			Destination: &cfg.syncIndex,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level: debug, info, warn or error",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// scopeFlags returns the caller scope flags with destination config
func scopeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID of the caller scope",
			Sources:     cli.EnvVars("KIOKU_USER_ID"),
			Destination: &cfg.userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "agent",
			Aliases:     []string{"a"},
			Usage:       "Agent ID of the caller scope",
			Sources:     cli.EnvVars("KIOKU_AGENT_ID"),
			Destination: &cfg.agentID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "run",
			Aliases:     []string{"r"},
			Usage:       "Run ID narrowing the caller scope",
			Sources:     cli.EnvVars("KIOKU_RUN_ID"),
			Destination: &cfg.runID,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Project narrowing the caller scope",
			Sources:     cli.EnvVars("KIOKU_PROJECT"),
			Destination: &cfg.project,
		},
	}
}

// embeddingFlags returns flags for the embedding provider with destination config
func embeddingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding",
			Usage:       "Embedding provider: gemini or local",
			Value:       "local",
			Sources:     cli.EnvVars("KIOKU_EMBEDDING"),
			Destination: &cfg.embedding,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

func (cfg *config) scope() model.Scope {
	return model.Scope{
		UserID:  cfg.userID,
		AgentID: cfg.agentID,
		RunID:   cfg.runID,
		Project: cfg.project,
	}
}

// newRepository creates the record store selected by the backend flag
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.backend {
	case "sqlite":
		return repository.NewSQLite(ctx, cfg.dbPath)
	case "firestore":
		return repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
	default:
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newEmbedder creates the embedding provider selected by the flags
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	switch cfg.embedding {
	case "local":
		return adapter.NewLocalEmbedder(0), nil
	case "gemini":
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
	default:
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown embedding provider", goerr.V("embedding", cfg.embedding))
	}
}

// newEngine wires repository, index and embedder into a memory engine.
// The returned closer releases the repository. One-shot commands pass
// memory.WithSyncIndex() here: the process exits right after the
// operation, so a detached index write would be lost.
func (cfg *config) newEngine(ctx context.Context, extra ...memory.Option) (*memory.UseCase, func() error, error) {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	index, err := adapter.NewChromem(cfg.indexPath)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	rank, err := loadRankConfig(cfg.rankConfigPath)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	opts := []memory.Option{memory.WithRankConfig(rank)}
	if cfg.syncIndex {
		opts = append(opts, memory.WithSyncIndex())
	}
	opts = append(opts, extra...)

	return memory.New(repo, index, embedder, opts...), repo.Close, nil
}

// rankFile is the YAML shape of the tunable ranking configuration
type rankFile struct {
	SimilarityWeight *float64 `yaml:"similarity_weight"`
	RecencyWeight    *float64 `yaml:"recency_weight"`
	ConfidenceWeight *float64 `yaml:"confidence_weight"`
	HalfLife         string   `yaml:"half_life"`
}

// loadRankConfig reads the ranking configuration file, falling back to
// the engine defaults for absent values.
func loadRankConfig(path string) (memory.RankConfig, error) {
	cfg := memory.DefaultRankConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to read rank config", goerr.V("path", path))
	}

	var file rankFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, goerr.Wrap(err, "failed to parse rank config", goerr.V("path", path))
	}

	if file.SimilarityWeight != nil {
		cfg.SimilarityWeight = *file.SimilarityWeight
	}
	if file.RecencyWeight != nil {
		cfg.RecencyWeight = *file.RecencyWeight
	}
	if file.ConfidenceWeight != nil {
		cfg.ConfidenceWeight = *file.ConfidenceWeight
	}
	if file.HalfLife != "" {
		halfLife, err := time.ParseDuration(file.HalfLife)
		if err != nil {
			return cfg, goerr.Wrap(err, "failed to parse half_life", goerr.V("half_life", file.HalfLife))
		}
		cfg.HalfLife = halfLife
	}

	return cfg, nil
}
