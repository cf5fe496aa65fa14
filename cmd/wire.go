package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/fungame/internal/adapters/backend/gemini"
	"github.com/bnema/fungame/internal/adapters/backend/offline"
	staterender "github.com/bnema/fungame/internal/adapters/render/state"
	tomlrepo "github.com/bnema/fungame/internal/adapters/repo/toml"
	chainstore "github.com/bnema/fungame/internal/adapters/secrets/chain"
	boltstore "github.com/bnema/fungame/internal/adapters/store/bolt"
	"github.com/bnema/fungame/internal/adapters/store/memory"
	sqlitestore "github.com/bnema/fungame/internal/adapters/store/sqlite"
	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/config"
	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/logging"
	"github.com/bnema/fungame/internal/ports"
	"go.uber.org/zap"
)

type gameBackend interface {
	ports.Classifier
	ports.Narrator
}

type app struct {
	cfg            config.Config
	logger         *zap.Logger
	states         ports.StateStore
	sessions       ports.SessionRepository
	secretStore    ports.SecretStore
	service        *application.Service
	stateRenderer  func(application.StateView, staterender.RenderOptions) (string, error)
	historyRender  func(domain.Session, []domain.GameState, staterender.RenderOptions) (string, error)
	sessionsRender func([]application.SessionSummary, staterender.RenderOptions) (string, error)
	now            func() time.Time
	closers        []func() error
}

func wireApp(configPath string, logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(config.LoadOptions{Path: configPath})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOutput)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	a := &app{
		cfg:            cfg,
		logger:         logger,
		stateRenderer:  staterender.RenderState,
		historyRender:  staterender.RenderHistory,
		sessionsRender: staterender.RenderSessions,
		now:            time.Now,
	}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	states, err := openStateStore(cfg.Store)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("wire state store: %w", err)
	}
	a.states = states
	if closer, ok := states.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}

	sessions, err := tomlrepo.NewRepository(cfg.Store.SessionsPath)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("wire session repository: %w", err)
	}
	a.sessions = sessions

	secretStore, err := chainstore.NewEnvFirstWithFileFallback(cfg.Store.SecretsPath)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}
	a.secretStore = secretStore

	a.service = application.NewService(states, sessions, secretStore, ports.SystemClock{})
	logger.Debug("app wired",
		zap.String("store", cfg.Store.Driver),
		zap.String("backend", cfg.Backend.Kind),
		zap.String("data_dir", cfg.DataDir),
	)
	return a, nil
}

func openStateStore(cfg config.StoreConfig) (ports.StateStore, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return memory.NewStore(), nil
	case config.StoreSQLite, config.StoreBolt:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if cfg.Driver == config.StoreBolt {
		return boltstore.Open(cfg.Path)
	}
	return sqlitestore.Open(cfg.Path)
}

// backend builds the configured classifier and narrator. The gemini key comes
// from the secret store.
func (a *app) backend(ctx context.Context) (gameBackend, error) {
	switch a.cfg.Backend.Kind {
	case config.BackendOffline:
		return offline.New(), nil
	case config.BackendGemini:
		key, err := a.secretStore.Get(ctx, a.cfg.Backend.APIKeySecret)
		if err != nil {
			return nil, fmt.Errorf("load gemini api key %q: %w", a.cfg.Backend.APIKeySecret, err)
		}
		backend, err := gemini.New(ctx, gemini.Config{
			APIKey:            key,
			Model:             a.cfg.Backend.Model,
			ClassifierModel:   a.cfg.Backend.ClassifierModel,
			RequestsPerMinute: a.cfg.Backend.RequestsPerMinute,
			Temperature:       a.cfg.Backend.Temperature,
		}, a.logger.Named("gemini"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, backend.Close)
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", a.cfg.Backend.Kind)
	}
}

func (a *app) controller(ctx context.Context, publisher ports.Publisher, metrics ports.Metrics) (*application.SessionController, error) {
	backend, err := a.backend(ctx)
	if err != nil {
		return nil, fmt.Errorf("wire backend: %w", err)
	}

	return application.NewSessionController(a.cfg.Controller(), application.ControllerDeps{
		Gate:      application.NewClassifierGate(backend, a.cfg.Gate(), a.logger.Named("gate"), metrics),
		Store:     a.states,
		Sessions:  a.sessions,
		Narrator:  backend,
		Publisher: publisher,
		Clock:     ports.SystemClock{},
		Logger:    a.logger.Named("controller"),
		Metrics:   metrics,
	}), nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
