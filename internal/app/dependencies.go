package app

import (
	"context"

	"github.com/klokku/calsync/internal/config"
	"github.com/klokku/calsync/internal/database"
	"github.com/klokku/calsync/internal/event_bus"
	"github.com/klokku/calsync/internal/utils"
	"github.com/klokku/calsync/pkg/calendar"
	"github.com/klokku/calsync/pkg/google"
	"github.com/klokku/calsync/pkg/history"
	"github.com/klokku/calsync/pkg/reconcile"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds everything a sync run needs.
type Dependencies struct {
	Clock utils.Clock
	Bus   *event_bus.EventBus

	Gateway    calendar.Gateway
	Reconciler *reconcile.Reconciler
	Executor   *reconcile.Executor

	HistoryRepo history.Repository
	Recorder    *history.Recorder

	closers []func()
}

// NewDependencies wires the sync engine on top of the given gateway.
func NewDependencies(cfg config.Application, gateway calendar.Gateway, clock utils.Clock) (*Dependencies, error) {
	reconciler, err := reconcile.NewReconciler(reconcile.Options{
		Prefix:           cfg.Prefix,
		ExclusionPattern: cfg.Filter,
		Description:      cfg.Description,
	})
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Clock:      clock,
		Bus:        event_bus.NewEventBus(),
		Gateway:    gateway,
		Reconciler: reconciler,
	}
	deps.Executor = reconcile.NewExecutor(gateway, deps.Bus, cfg.Sync.Concurrency)
	return deps, nil
}

// AttachHistory subscribes a recorder storing every run in repo.
func (d *Dependencies) AttachHistory(repo history.Repository) {
	d.HistoryRepo = repo
	d.Recorder = history.NewRecorder(repo, d.Bus)
	d.closers = append(d.closers, d.Recorder.Close)
}

// Close releases the resources opened while building the dependencies.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// BuildDependencies initializes the Google gateway and, when enabled, the
// run history database.
func BuildDependencies(ctx context.Context, cfg config.Application) (*Dependencies, error) {
	clock := utils.SystemClock{}

	authorizer, err := NewAuthorizer(ctx, cfg.Google)
	if err != nil {
		return nil, err
	}
	gateway, err := google.NewGateway(ctx, authorizer, clock, cfg.Google)
	if err != nil {
		return nil, err
	}

	deps, err := NewDependencies(cfg, gateway, clock)
	if err != nil {
		return nil, err
	}

	if cfg.History.Enabled {
		repo, closeDb, err := OpenHistory(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, closeDb)
		deps.AttachHistory(repo)
		log.Infof("Recording runs in database %s", cfg.Database.Name)
	}
	return deps, nil
}

func NewAuthorizer(ctx context.Context, cfg config.Google) (*google.Authorizer, error) {
	credentials, err := google.LoadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return google.NewAuthorizer(credentials, google.NewFileTokenStore(cfg.TokenFile), cfg.CallbackAddr)
}

// OpenHistory connects to the history database and brings its schema up to
// date.
func OpenHistory(ctx context.Context, cfg config.Database) (history.Repository, func(), error) {
	if err := database.Migrate(ctx, cfg); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return history.NewRepo(db), db.Close, nil
}
