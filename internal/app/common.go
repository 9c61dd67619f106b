package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/blackwell-systems/pinscan/internal/config"
	"github.com/blackwell-systems/pinscan/internal/finder"
	"github.com/blackwell-systems/pinscan/internal/github"
	"github.com/blackwell-systems/pinscan/internal/logger"
	"github.com/blackwell-systems/pinscan/internal/scanner"
	"github.com/blackwell-systems/pinscan/internal/specifier"
	"github.com/blackwell-systems/pinscan/internal/store"
	"github.com/blackwell-systems/pinscan/internal/store/docstore"
)

// environment holds everything a command needs for one invocation.
type environment struct {
	cfg     *config.Config
	log     *logger.Logger
	backend store.Backend

	client    *github.Client
	clientErr error
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cfg.ApplyOverrides(config.Overrides{
		DBPath:     dbPath,
		Engine:     engine,
		CorpusPath: corpusPath,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
	})
	if verbose && logLevel == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEnvironment loads configuration, builds the logger and opens the
// configured backend. Callers must Close it.
func openEnvironment() (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	backend, err := openBackend(&cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Debugw("opened database", "engine", cfg.Database.Engine, "path", cfg.Database.Path)

	return &environment{cfg: cfg, log: log, backend: backend}, nil
}

// openBackend opens the storage engine named by cfg.Engine.
func openBackend(cfg *config.DatabaseConfig) (store.Backend, error) {
	switch cfg.Engine {
	case config.EngineSQLite, "":
		db, err := store.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.CreateSchema(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database schema: %w", err)
		}
		return db, nil
	case config.EngineJSON:
		ds, err := docstore.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return ds, nil
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Engine)
	}
}

// Close syncs the logger and closes the backend.
func (e *environment) Close() error {
	_ = e.log.Sync()
	return e.backend.Close()
}

// newScanner builds a scanner using the configured finder.
func (e *environment) newScanner(progress io.Writer) (*scanner.Scanner, error) {
	f, err := finder.FromConfig(&e.cfg.Scan, e.log)
	if err != nil {
		return nil, err
	}
	s := scanner.New(e.backend, f, e.log)
	if !quiet && progress != nil {
		s.SetProgressWriter(progress)
	}
	return s, nil
}

// githubClient returns the search client, loading the token on first use.
// A missing token is remembered so every specifier reports it.
func (e *environment) githubClient() (*github.Client, error) {
	if e.client != nil || e.clientErr != nil {
		return e.client, e.clientErr
	}
	token, err := config.LoadToken()
	if err != nil {
		e.clientErr = err
		return nil, err
	}
	e.client = github.NewClient(&e.cfg.GitHub, token, e.log)
	return e.client, nil
}

// forEachSpec runs step for every specifier in order. A failing specifier
// is reported on errOut and does not stop the others; the returned error
// summarises how many failed.
func forEachSpec(errOut io.Writer, log *logger.Logger, specs []specifier.Specifier, step func(specifier.Specifier) error) error {
	failed := 0
	for _, spec := range specs {
		if err := step(spec); err != nil {
			failed++
			log.WithPackage(spec.Name).Debugw("step failed", "error", err)
			fmt.Fprintf(errOut, "Error: %s: %v\n", spec.Canonical(), err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %s failed", failed, len(specs), plural(len(specs), "specifier", "specifiers"))
	}
	return nil
}

// describeError adds a hint for errors the user can fix.
func describeError(err error) error {
	switch {
	case errors.Is(err, finder.ErrToolNotFound):
		return fmt.Errorf("%w (install ripgrep or set scan.finder: native)", err)
	case errors.Is(err, scanner.ErrCorpusNotFound):
		return fmt.Errorf("%w (set --corpus or corpus.path)", err)
	default:
		return err
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
