// Package bootstrap wires configuration into the services shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vendedor360/backend/config"
	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/cache"
	"github.com/vendedor360/backend/internal/infrastructure/catalog"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
	"github.com/vendedor360/backend/internal/infrastructure/metrics"
	"github.com/vendedor360/backend/internal/infrastructure/portal"
	"github.com/vendedor360/backend/internal/infrastructure/submissionlog"
	"github.com/vendedor360/backend/internal/usecase"
)

// App holds the wired components
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Loader     *catalog.Loader
	Matcher    *usecase.MatchingService
	Proposals  *usecase.ProposalService
	Metrics    *metrics.Recorder
	Dispatcher *usecase.Dispatcher

	closers []io.Closer
}

// New builds every component from cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}

	loader, err := catalog.NewLoader(catalog.Options{Encoding: cfg.Catalog.Encoding})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Log:    log,
		Loader: loader,
		Matcher: usecase.NewMatchingService(usecase.MatchConfig{
			Bidirectional:      cfg.Matching.Bidirectional,
			FoldAccents:        cfg.Matching.FoldAccents,
			EnableDebugLogging: cfg.Matching.EnableDebugLogging,
		}, log),
		Proposals:  usecase.NewProposalService(),
		Metrics:    metrics.NewRecorder(),
		Dispatcher: usecase.NewDispatcher(cfg.Catalog.Path, log),
	}

	ledger, closer, err := NewLedger(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("submission ledger: %w", err)
	}
	app.closers = append(app.closers, closer)

	sink, closer, err := NewSubmissionLog(ctx, cfg.SubmissionLog)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("submission log: %w", err)
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	for _, name := range cfg.Portals.Enabled() {
		pc, _ := cfg.Portals.Get(name)
		profile, err := Profile(name, pc)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Dispatcher.Register(name, app.sessionFactory(profile, pc, sink, ledger))
		log.Info("portal_enabled", "portal", name, "base_url", profile.BaseURL)
	}

	return app, nil
}

// sessionFactory returns a factory building a fresh browsing session per run
func (a *App) sessionFactory(
	profile portal.Profile,
	pc config.PortalConfig,
	sink domain.SubmissionLog,
	ledger domain.SubmissionLedger,
) usecase.SessionFactory {
	cfg := a.Config
	return func() (*usecase.BiddingService, error) {
		adapter, err := portal.NewAdapter(profile, portal.Options{
			RequestTimeout: cfg.Bidding.RequestTimeout,
			RateLimit:      cfg.RateLimit.PortalRPS,
			Burst:          cfg.RateLimit.PortalBurst,
			UserAgent:      cfg.Bidding.UserAgent,
		}, a.Log)
		if err != nil {
			return nil, err
		}

		return usecase.NewBiddingService(adapter, sink, ledger, a.Matcher,
			usecase.BiddingConfig{
				Portal:       profile.Name,
				Credentials:  domain.Credentials{Username: pc.Username, Password: pc.Password},
				StatusLabel:  profile.StatusLabel,
				SettleDelay:  cfg.Bidding.SettleDelay,
				DedupTTL:     cfg.Cache.TTL,
				DatasheetDir: cfg.Bidding.DatasheetDir,
			},
			usecase.WithCatalogLoader(a.Loader),
			usecase.WithRunMetrics(a.Metrics),
			usecase.WithLogger(a.Log),
		), nil
	}
}

// Profile returns the built-in profile for name with the configured base URL applied
func Profile(name string, pc config.PortalConfig) (portal.Profile, error) {
	profile, ok := portal.LookupProfile(name)
	if !ok {
		return portal.Profile{}, fmt.Errorf("%w: %q", domain.ErrUnknownPortal, name)
	}
	if pc.BaseURL != "" {
		profile = profile.WithBaseURL(pc.BaseURL)
	}
	return profile, profile.Validate()
}

// NewLedger opens the configured submission ledger
func NewLedger(ctx context.Context, cfg config.CacheConfig) (domain.SubmissionLedger, io.Closer, error) {
	switch cfg.Type {
	case "redis":
		ledger, err := cache.NewRedisLedger(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return ledger, ledger, nil
	case "memory", "":
		ledger := cache.NewMemoryLedger(cfg.CleanupInterval)
		return ledger, ledger, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// NewSubmissionLog opens the configured sink. The closer is nil when the sink holds no resources.
func NewSubmissionLog(ctx context.Context, cfg config.SubmissionLogConfig) (domain.SubmissionLog, io.Closer, error) {
	switch cfg.Type {
	case "sheets":
		sink, err := submissionlog.NewSheetsLog(ctx, submissionlog.SheetsConfig{
			SpreadsheetID:   cfg.SpreadsheetID,
			CredentialsFile: cfg.CredentialsFile,
			Range:           cfg.Range,
			MaxAttempts:     cfg.MaxAttempts,
		})
		if err != nil {
			return nil, nil, err
		}
		return sink, nil, nil
	case "csv":
		sink, err := submissionlog.NewCSVLog(cfg.CSVPath)
		if err != nil {
			return nil, nil, err
		}
		return sink, nil, nil
	case "postgres":
		sink, err := submissionlog.NewPostgresLog(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	default:
		return nil, nil, fmt.Errorf("unknown submission log type %q", cfg.Type)
	}
}

// Close releases the ledger and the submission log
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
