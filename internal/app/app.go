package app

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/klokku/calsync/internal/config"
	"github.com/klokku/calsync/internal/event_bus"
	"github.com/klokku/calsync/pkg/calendar"
	"github.com/klokku/calsync/pkg/reconcile"
	log "github.com/sirupsen/logrus"
)

// Application runs sync cycles between the configured source and target
// calendars.
type Application struct {
	cfg  config.Application
	deps *Dependencies
	out  io.Writer
}

// NewApplication builds an application on already wired dependencies. Plan
// and result summaries are written to out.
func NewApplication(cfg config.Application, deps *Dependencies, out io.Writer) *Application {
	return &Application{cfg: cfg, deps: deps, out: out}
}

// RunOnce performs one full sync cycle. The returned error is non-nil when
// the run aborted or when any operation of the plan failed.
func (a *Application) RunOnce(ctx context.Context) (reconcile.Result, error) {
	if a.cfg.Sync.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Sync.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	logger := log.WithField("run", runID)
	logger.Infof("Starting sync from %q to %q (prefix %q, filter %q, dry run %t)",
		a.cfg.Source, a.cfg.Target, a.cfg.Prefix, a.cfg.Filter, a.cfg.Sync.DryRun)

	a.publish(ctx, event_bus.RunStartedType, event_bus.RunStarted{
		RunID:     runID,
		Source:    a.cfg.Source,
		Target:    a.cfg.Target,
		StartedAt: a.deps.Clock.Now(),
	})

	result, err := a.run(ctx, runID, logger)
	if err != nil {
		logger.Errorf("Sync aborted: %v", err)
	}

	// the run may have timed out, the outcome still has to reach the recorder
	a.publish(context.WithoutCancel(ctx), event_bus.RunFinishedType, event_bus.RunFinished{
		RunID:      runID,
		FinishedAt: a.deps.Clock.Now(),
		Err:        err,
	})

	if err != nil {
		return result, err
	}
	if err := result.Err(); err != nil {
		return result, fmt.Errorf("%d of %d operations failed: %w", len(result.Failures()), len(result.Outcomes), err)
	}
	return result, nil
}

func (a *Application) run(ctx context.Context, runID string, logger *log.Entry) (reconcile.Result, error) {
	gateway := a.deps.Gateway

	source, err := gateway.FindCalendarByName(ctx, a.cfg.Source)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("source calendar: %w", err)
	}
	target, err := gateway.FindCalendarByName(ctx, a.cfg.Target)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("target calendar: %w", err)
	}
	if source.ID == target.ID {
		return reconcile.Result{}, fmt.Errorf("source and target resolve to the same calendar %s", source.ID)
	}

	sourceEvents, err := gateway.ListUpcomingEvents(ctx, source)
	if err != nil {
		return reconcile.Result{}, err
	}
	targetEvents, err := gateway.ListUpcomingEvents(ctx, target)
	if err != nil {
		return reconcile.Result{}, err
	}
	logger.Infof("%d upcoming events in %s, %d in %s", len(sourceEvents), source.Summary, len(targetEvents), target.Summary)

	plan := a.deps.Reconciler.Reconcile(sourceEvents, targetEvents)
	if err := reconcile.RenderPlan(a.out, plan); err != nil {
		logger.Warnf("Unable to write plan summary: %v", err)
	}
	a.publish(ctx, event_bus.PlanComputedType, event_bus.PlanComputed{
		RunID:   runID,
		Adds:    len(plan.Adds()),
		Updates: len(plan.Updates()),
		Removes: len(plan.Removes()),
		DryRun:  a.cfg.Sync.DryRun,
	})

	if a.cfg.Sync.DryRun {
		logger.Info("Dry run, no changes applied")
		return reconcile.Result{}, nil
	}
	if plan.IsEmpty() {
		logger.Infof("Calendar %s is up to date", target.Summary)
		return reconcile.Result{}, nil
	}

	result := a.deps.Executor.Apply(ctx, target, plan)
	if err := reconcile.RenderResult(a.out, result); err != nil {
		logger.Warnf("Unable to write result summary: %v", err)
	}
	logger.Infof("Sync finished: %d added, %d updated, %d removed, %d failed",
		result.Count(reconcile.OpAdd), result.Count(reconcile.OpUpdate), result.Count(reconcile.OpRemove), len(result.Failures()))
	return result, nil
}

// ListCalendars returns every calendar the authorized account sees.
func (a *Application) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	return a.deps.Gateway.ListCalendars(ctx)
}

func (a *Application) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if err := a.deps.Bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Warnf("Subscriber of %s failed: %v", eventType, err)
	}
}
