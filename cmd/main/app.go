package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CTAG07/chainwalk/pkg/markov"
	"github.com/CTAG07/chainwalk/pkg/store"
	"github.com/CTAG07/chainwalk/pkg/tokenize"
)

// app holds everything a command needs once the config has been loaded.
type app struct {
	configPath string
	config     *Config
	logger     *slog.Logger
	db         *sql.DB
	store      store.Store
	tokenizer  *tokenize.Tokenizer
}

// open loads the config and opens the configured store.
func (a *app) open(logOut io.Writer) error {
	config, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.config = config
	a.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: config.logLevel()}))
	a.tokenizer = newTokenizer(config.Tokenizer)

	codec, err := store.CodecByName(config.Storage.Codec)
	if err != nil {
		return err
	}

	switch config.Storage.Backend {
	case "files":
		a.store = &store.FileStore{Dir: config.Storage.SnapshotDir, Codec: codec}
	case "sqlite":
		if err = os.MkdirAll(config.Storage.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if a.db, err = initDB(config.Storage.DatabasePath); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err = store.SetupSchema(a.db); err != nil {
			return fmt.Errorf("failed to setup chain schema: %w", err)
		}
		s, err := store.NewSQLStore(a.db, codec)
		if err != nil {
			return fmt.Errorf("failed to create chain store: %w", err)
		}
		s.SetLogger(a.logger)
		a.store = s
	}

	a.logger.Debug("Store opened",
		slog.String("backend", config.Storage.Backend),
		slog.String("codec", codec.Name()),
	)
	return nil
}

// close releases the store and database. It is safe to call after a failed
// open, or without open at all.
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to close store", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
}

// chainOptions returns the options for new, loaded and imported chains.
func (a *app) chainOptions() []markov.Option {
	return []markov.Option{
		markov.WithTokenMap(a.config.Chain.TokenMap),
		markov.WithMaxSteps(a.config.Chain.MaxSteps),
		markov.WithLogger(a.logger),
	}
}

func newTokenizer(cfg *TokenizerConfig) *tokenize.Tokenizer {
	opts := []tokenize.Option{
		tokenize.WithSeparator(cfg.Separator),
		tokenize.WithKeepEnd(cfg.KeepEnd),
	}
	if cfg.SplitRegex != "" {
		opts = append(opts, tokenize.WithSplitRegex(cfg.SplitRegex))
	}
	if cfg.EndRegex != "" {
		opts = append(opts, tokenize.WithEndRegex(cfg.EndRegex))
	}
	if cfg.NoSpaceRegex != "" {
		opts = append(opts, tokenize.WithNoSpaceRegex(cfg.NoSpaceRegex))
	}
	return tokenize.New(opts...)
}

// openInput opens path for reading, with "-" meaning stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}
