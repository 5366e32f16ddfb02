package cli

import (
	"context"
	"errors"
	"fmt"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/session"
)

// Cache namespaces. The dashboard cache and the sync data live in different
// namespaces so that clearing one never touches the other.
const (
	DashboardNamespace = "cache:"
	SyncNamespace      = "sync:"
)

// App is the fully wired core shared by the server and the one-shot commands.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Metrics

	Records    recordstore.Store
	Session    *session.Session
	Events     *notify.Broadcaster
	DashCache  *cache.Local
	SyncCache  *cache.Local
	Queue      *offline.Queue
	Dashboard  *services.DashboardService
	Reconciler *services.Reconciler
	Mutations  *services.MutationService
	Monitor    *services.Monitor

	cleanup backend.CleanupFunc
}

// Build creates the backends named by cfg and wires the services on top of
// them. The session is signed in when cfg.UserID is set.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger, m *metrics.Metrics) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = log.Default(log.ComponentApp)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).Create(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Records: res.Records,
		Session: session.New(),
		cleanup: res.Cleanup,
	}

	a.Events = notify.NewBroadcaster(logger.WithComponent(log.ComponentNotify), m, res.Sinks...)
	a.DashCache = cache.NewLocal(res.DashboardStore,
		cache.WithNamespace(DashboardNamespace),
		cache.WithLogger(logger.WithComponent(log.ComponentCache)),
		cache.WithMetrics(m))
	a.SyncCache = cache.NewLocal(res.SyncStore,
		cache.WithNamespace(SyncNamespace),
		cache.WithLogger(logger.WithComponent(log.ComponentQueue)))
	a.Queue = offline.NewQueue(a.SyncCache, m)

	if cfg.UserID != "" {
		if err := a.Session.Init(cfg.UserID, session.Preferences{}); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Dashboard = services.NewDashboardService(res.Records, a.DashCache, a.Events,
		logger.WithComponent(log.ComponentDashboard), m,
		services.DashboardConfig{
			TTLMinutes: cfg.CacheTTLMinutes,
			Options: aggregate.Options{
				Window:   cfg.WindowMonths,
				TopLimit: cfg.TopCategories,
			},
		})
	a.Reconciler = services.NewReconciler(services.ReconcilerDeps{
		Queue:     a.Queue,
		Store:     res.Records,
		Refresher: a.Dashboard,
		Session:   a.Session,
		Meta:      a.SyncCache,
		Events:    a.Events,
		Logger:    logger.WithComponent(log.ComponentReconciler),
		Metrics:   m,
	})
	a.Dashboard.SetConnectivity(a.Reconciler)
	a.Mutations = services.NewMutationService(res.Records, a.Queue, a.Dashboard, a.Reconciler, a.Events,
		logger.WithComponent(log.ComponentMutations))
	a.Monitor = services.NewMonitor(res.Records, a.Reconciler, a.Queue,
		services.MonitorConfig{PollInterval: cfg.SyncInterval},
		logger.WithComponent(log.ComponentMonitor))

	return a, nil
}

// UserID returns the signed-in user.
func (a *App) UserID() (string, error) {
	return a.Session.UserID()
}

// Connect probes the record store once and, when reachable, goes online.
// One-shot commands use it instead of running the monitor.
func (a *App) Connect(ctx context.Context) (services.ReplayReport, error) {
	if err := a.Records.Ping(ctx); err != nil {
		return services.ReplayReport{}, fmt.Errorf("%w: %v", services.ErrOffline, err)
	}
	return a.Reconciler.GoOnline(ctx)
}

// Close waits for background refreshes and releases the backends.
func (a *App) Close() error {
	if a.Dashboard != nil {
		a.Dashboard.Wait()
	}
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}
