package jobs

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RecurringSubmission describes one scheduled optimization run: a cron
// expression and the scenario payload to submit on each tick.
type RecurringSubmission struct {
	ID         string          `json:"id"`
	Expression string          `json:"expression"`
	JobType    string          `json:"job_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// CronDispatcher ticks a standard five-field cron schedule and submits a new
// job through the Scheduler on every firing, so recurring optimization runs
// (e.g. "nightly replan") do not need an external scheduler.
type CronDispatcher struct {
	scheduler *Scheduler
	logger    *zap.Logger
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewCronDispatcher builds a dispatcher over scheduler. Expressions use the
// standard five-field cron format; robfig/cron/v3's default parser.
func NewCronDispatcher(scheduler *Scheduler, logger *zap.Logger) *CronDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronDispatcher{
		scheduler: scheduler,
		logger:    logger,
		cron:      cron.New(),
		entries:   make(map[string]cron.EntryID),
	}
}

// Add registers a recurring submission. Re-adding an ID already registered
// replaces its schedule.
func (d *CronDispatcher) Add(sub RecurringSubmission) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.entries[sub.ID]; ok {
		d.cron.Remove(existing)
		delete(d.entries, sub.ID)
	}

	entryID, err := d.cron.AddFunc(sub.Expression, func() {
		job := Job{Type: sub.JobType, Payload: sub.Payload}
		if _, err := d.scheduler.Submit(job); err != nil {
			d.logger.Warn("recurring submission failed", zap.String("recurring_id", sub.ID), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", sub.Expression, err)
	}
	d.entries[sub.ID] = entryID
	return nil
}

// Remove unregisters a recurring submission by ID; a no-op if unknown.
func (d *CronDispatcher) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entryID, ok := d.entries[id]; ok {
		d.cron.Remove(entryID)
		delete(d.entries, id)
	}
}

// Start begins ticking registered schedules in the background.
func (d *CronDispatcher) Start() { d.cron.Start() }

// Stop halts ticking and waits for any in-flight tick to finish.
func (d *CronDispatcher) Stop() { <-d.cron.Stop().Done() }
