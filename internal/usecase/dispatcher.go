package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
	"golang.org/x/sync/semaphore"
)

// SessionFactory builds a fresh bidding session (new adapter, new browsing state)
type SessionFactory func() (*BiddingService, error)

// Dispatcher runs bidding sessions for the configured portals, one at a time
type Dispatcher struct {
	catalogPath string
	order       []string
	factories   map[string]SessionFactory
	running     *semaphore.Weighted
	log         *logger.Logger
}

// NewDispatcher creates a dispatcher that loads the price list at catalogPath for every run
func NewDispatcher(catalogPath string, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{
		catalogPath: catalogPath,
		factories:   make(map[string]SessionFactory),
		running:     semaphore.NewWeighted(1),
		log:         log,
	}
}

// Register adds a portal. Portals run in registration order.
func (d *Dispatcher) Register(name string, factory SessionFactory) {
	if _, exists := d.factories[name]; !exists {
		d.order = append(d.order, name)
	}
	d.factories[name] = factory
}

// Portals returns the registered portal names in run order
func (d *Dispatcher) Portals() []string {
	return append([]string(nil), d.order...)
}

// RunPortal runs a single portal's session
func (d *Dispatcher) RunPortal(ctx context.Context, name string) (*domain.RunReport, error) {
	factory, ok := d.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPortal, name)
	}
	if !d.running.TryAcquire(1) {
		return nil, domain.ErrRunInProgress
	}
	defer d.running.Release(1)

	return d.runPortal(ctx, name, factory)
}

// RunAll runs every registered portal sequentially.
// An aborted portal does not stop the following ones; cancellation does.
func (d *Dispatcher) RunAll(ctx context.Context) ([]*domain.RunReport, error) {
	if !d.running.TryAcquire(1) {
		return nil, domain.ErrRunInProgress
	}
	defer d.running.Release(1)

	reports := make([]*domain.RunReport, 0, len(d.order))
	for _, name := range d.order {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := d.runPortal(ctx, name, d.factories[name])
		reports = append(reports, report)
		if err != nil {
			d.log.Error("portal_aborted", "portal", name, "error", err.Error())
		}
	}
	return reports, ctx.Err()
}

func (d *Dispatcher) runPortal(ctx context.Context, name string, factory SessionFactory) (*domain.RunReport, error) {
	svc, err := factory()
	if err != nil {
		now := time.Now()
		err = fmt.Errorf("create %s session: %w", name, err)
		return &domain.RunReport{
			Portal:      name,
			State:       domain.StateAborted,
			Transitions: []domain.RunState{domain.StateIdle, domain.StateAborted},
			StartedAt:   now,
			FinishedAt:  now,
			Err:         err.Error(),
		}, err
	}

	d.log.Info("portal_run_started", "portal", name)
	return svc.RunSession(ctx, d.catalogPath)
}
