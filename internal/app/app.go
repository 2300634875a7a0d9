// Package app assembles a running hera instance from configuration: the
// catalog, the SQLite store, the smart code governor and the engine.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/catalog"
	"github.com/hera-erp/hera/internal/config"
	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/metrics"
	"github.com/hera-erp/hera/internal/smartcode"
	"github.com/hera-erp/hera/internal/store"
)

// App holds the assembled components. Close releases the store.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Catalog  *catalog.Catalog
	Store    *store.Store
	Governor *smartcode.Governor
	Engine   *engine.Engine
}

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   engine.Clock
	ids     engine.IDGenerator
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger handed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics attaches collectors to the engine and the governor.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the engine clock. The store bootstrap uses it too.
func WithClock(c engine.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator replaces the engine id generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// Open builds an App from cfg.
func Open(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logger: zap.NewNop(), clock: engine.SystemClock{}, ids: engine.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}

	cat, err := catalog.Load(cfg.Governance.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, store.Options{
		SystemOrganizationID: cfg.Tenancy.SystemOrganizationID,
		Now:                  o.clock.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	govOpts := []smartcode.Option{
		smartcode.WithUsageLookup(st),
		smartcode.WithProviderLookup(st),
		smartcode.WithSystemOrganization(st.SystemOrganizationID()),
		smartcode.WithLimits(smartcode.Limits{
			ComplexityCeiling: cfg.Governance.ComplexityCeiling,
			MaxCodeLength:     cfg.Governance.MaxCodeLength,
		}),
		smartcode.WithLogger(o.logger.Named("governor")),
	}
	if cfg.Governance.CacheSize > 0 {
		govOpts = append(govOpts, smartcode.WithCache(smartcode.NewCache(cfg.Governance.CacheSize, cfg.Governance.CacheTTL)))
	}
	engOpts := []engine.Option{
		engine.WithLogger(o.logger.Named("engine")),
		engine.WithClock(o.clock),
		engine.WithIDGenerator(o.ids),
		engine.WithDefaultLevel(smartcode.Level(cfg.Governance.DefaultLevel)),
		engine.WithMaxDepth(cfg.Graph.MaxDepth),
		engine.WithMaxBatchItems(cfg.Engine.MaxBatchItems),
	}
	if o.metrics != nil {
		govOpts = append(govOpts, smartcode.WithRecorder(o.metrics))
		engOpts = append(engOpts, engine.WithRecorder(o.metrics))
	}

	gov := smartcode.NewGovernor(cat, govOpts...)
	eng := engine.New(st, gov, engOpts...)

	o.logger.Debug("hera assembled",
		zap.String("database", cfg.Database.Path),
		zap.Int("modules", len(cat.Modules)),
		zap.Stringer("default_level", smartcode.Level(cfg.Governance.DefaultLevel)),
	)

	return &App{
		Config:   cfg,
		Logger:   o.logger,
		Metrics:  o.metrics,
		Catalog:  cat,
		Store:    st,
		Governor: gov,
		Engine:   eng,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
