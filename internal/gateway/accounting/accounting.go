// Package accounting runs the gateway's fire-and-forget side effects: audit
// rows, rule savings credits, budget enforcement, and alerts. Jobs are
// dispatched after the response is computed, never awaited by the request
// path, and never alter what the caller already received. Failures are logged
// and swallowed; there are no retries.
package accounting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/costpilot/gateway/internal/shared/models"
	"github.com/costpilot/gateway/internal/shared/notify"
)

// Store is the persistence surface the pipeline writes through.
type Store interface {
	InsertRequestRecord(ctx context.Context, rec *models.RequestRecord) error
	AddRuleSavings(ctx context.Context, ruleID string, savings float64) error
	ListActiveBudgets(ctx context.Context, ownerID string) ([]models.Budget, error)
	AddBudgetSpend(ctx context.Context, budgetID string, cost float64) (float64, error)
	MarkBudgetExceeded(ctx context.Context, budgetID string) error
	UpdateCredentialLastUsed(ctx context.Context, credentialID string) error
}

// jobTimeout bounds each job so a hung collaborator cannot pin a worker.
const jobTimeout = 15 * time.Second

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher owns a worker pool fed by a buffered queue. Enqueueing never
// blocks; when the queue is full the job is dropped with a warning, which is
// the accepted best-effort tradeoff.
type Dispatcher struct {
	store    Store
	notifier notify.Notifier

	jobs chan job
	wg   sync.WaitGroup
}

func New(store Store, notifier notify.Notifier, workers, queueSize int) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		jobs:     make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		// Jobs run detached from the originating request; a client
		// disconnect must not cancel accounting already in flight.
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		if err := j.run(ctx); err != nil {
			log.Warn("accounting job failed", "job", j.name, "err", err)
		}
		cancel()
	}
}

// Stop drains queued jobs and waits for workers to finish.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(name string, run func(ctx context.Context) error) {
	select {
	case d.jobs <- job{name: name, run: run}:
	default:
		log.Warn("accounting queue full, dropping job", "job", name)
	}
}

// Record persists one audit row.
func (d *Dispatcher) Record(rec models.RequestRecord) {
	d.enqueue("request_record", func(ctx context.Context) error {
		return d.store.InsertRequestRecord(ctx, &rec)
	})
}

// CreditRule adds realized savings to the applied rule's accumulator. Called
// only after the true cost is known.
func (d *Dispatcher) CreditRule(ruleID string, savings float64) {
	d.enqueue("rule_savings", func(ctx context.Context) error {
		return d.store.AddRuleSavings(ctx, ruleID, savings)
	})
}

// TouchCredential bumps the credential's last-used timestamp.
func (d *Dispatcher) TouchCredential(credentialID string) {
	d.enqueue("credential_touch", func(ctx context.Context) error {
		return d.store.UpdateCredentialLastUsed(ctx, credentialID)
	})
}

// EnforceBudgets charges cost against every active budget the account owns.
// Budgets are updated independently; one failing never blocks the others.
// Crossing the limit flips the budget to exceeded, crossing the alert
// threshold sends a notification, and both can fire on the same call.
func (d *Dispatcher) EnforceBudgets(ownerID string, cost float64) {
	if cost <= 0 {
		return
	}
	d.enqueue("budget_enforcement", func(ctx context.Context) error {
		budgets, err := d.store.ListActiveBudgets(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("listing budgets: %w", err)
		}
		for _, b := range budgets {
			newSpend, err := d.store.AddBudgetSpend(ctx, b.ID, cost)
			if err != nil {
				log.Warn("budget spend update failed", "budget", b.ID, "err", err)
				continue
			}
			if newSpend > b.LimitUSD {
				if err := d.store.MarkBudgetExceeded(ctx, b.ID); err != nil {
					log.Warn("budget status update failed", "budget", b.ID, "err", err)
				}
			}
			if newSpend > b.AlertThreshold {
				msg := fmt.Sprintf("budget %s: spend $%.2f has passed the alert threshold $%.2f (limit $%.2f)",
					b.ID, newSpend, b.AlertThreshold, b.LimitUSD)
				if err := d.notifier.Send(ctx, ownerID, msg); err != nil {
					log.Warn("budget alert delivery failed", "budget", b.ID, "err", err)
				}
			}
		}
		return nil
	})
}

// Go enqueues an arbitrary background task, used for cache writes and other
// effects that must not block or fail the response.
func (d *Dispatcher) Go(name string, run func(ctx context.Context) error) {
	d.enqueue(name, run)
}
