// Package scheduler coordinates per-instance scan timers and queue drains.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/logger"
	"github.com/jonesrussell/godocscan/internal/schedule"
)

// Scanner runs repository scans for instances.
type Scanner interface {
	ScanInstance(ctx context.Context, instanceID string) domain.ScanResult
}

// Processor drains the analysis queue and recovers stuck entries.
type Processor interface {
	ProcessAllPending(ctx context.Context) []domain.ProcessResult
	ResetStuckItems(ctx context.Context) (int64, error)
}

// InstanceStore provides instance configuration lookups.
type InstanceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Instance, error)
	ListAutoProcessEnabled(ctx context.Context) ([]*domain.Instance, error)
}

// Status is a snapshot of scheduler state.
type Status struct {
	Running            bool `json:"running"`
	ScheduledInstances int  `json:"scheduled_instances"`
	ProcessorActive    bool `json:"processor_active"`
}

// Scheduler owns one single-shot timer per enabled instance and a
// single-flight processor drain. Timer callbacks run scans, trigger a
// drain when new documents were queued, then re-arm from fresh instance
// configuration.
type Scheduler struct {
	scanner   Scanner
	processor Processor
	instances InstanceStore
	log       logger.Interface

	mu            sync.Mutex
	timers        map[string]*time.Timer
	scanning      map[string]struct{}
	running       bool
	processorBusy bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(scanner Scanner, processor Processor, instances InstanceStore, log logger.Interface) *Scheduler {
	return &Scheduler{
		scanner:   scanner,
		processor: processor,
		instances: instances,
		log:       log.WithComponent("scheduler"),
		timers:    make(map[string]*time.Timer),
		scanning:  make(map[string]struct{}),
	}
}

// Start recovers stuck queue entries and arms a timer for every
// auto-process enabled instance. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("Scheduler already running")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if reset, err := s.processor.ResetStuckItems(ctx); err != nil {
		s.log.Error("Failed to reset stuck queue entries", "error", err)
	} else if reset > 0 {
		s.log.Info("Reset stuck queue entries", "count", reset)
	}

	instances, err := s.instances.ListAutoProcessEnabled(ctx)
	if err != nil {
		s.log.Error("Failed to load instances for scheduling", "error", err)
		return err
	}

	for _, inst := range instances {
		if err := s.ScheduleInstance(inst.ID, inst.Name, inst.ScanCron, inst.NextScanAt); err != nil {
			s.log.Error("Failed to schedule instance",
				"instance_id", inst.ID,
				"instance_name", inst.Name,
				"error", err)
		}
	}

	s.log.Info("Scheduler started", "instances", len(instances))
	return nil
}

// Stop halts the scheduler and clears all armed timers. Scans or drains
// already in flight run to completion but do not re-arm.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.log.Info("Scheduler stopped")
}

// ScheduleInstance arms a single-shot timer for the instance. A stored
// future next-scan time is honored so restarts do not reshuffle the
// schedule; otherwise the next occurrence is evaluated from the cron
// expression. If a scan for the instance is in flight the call is a
// no-op, since the scan's completion re-arms the timer itself.
func (s *Scheduler) ScheduleInstance(id, name, cronExpr string, storedNext *time.Time) error {
	now := time.Now()

	target := time.Time{}
	if storedNext != nil && storedNext.After(now) {
		target = *storedNext
	} else {
		next, err := schedule.NextOccurrence(cronExpr)
		if err != nil {
			return err
		}
		target = next
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, inFlight := s.scanning[id]; inFlight {
		s.log.Debug("Scan in flight, skipping schedule", "instance_id", id)
		return nil
	}

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}

	delay := time.Until(target)
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.runInstanceScan(context.Background(), id)
	})

	s.log.Info("Instance scheduled",
		"instance_id", id,
		"instance_name", name,
		"next_scan_at", target.Format(time.RFC3339))
	return nil
}

// UnscheduleInstance disarms the instance's timer if one is armed.
func (s *Scheduler) UnscheduleInstance(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
		s.log.Info("Instance unscheduled", "instance_id", id)
	}
}

// TriggerScan runs a scan for the instance immediately, equivalent to
// its timer firing now.
func (s *Scheduler) TriggerScan(ctx context.Context, id string) {
	s.runInstanceScan(ctx, id)
}

// runInstanceScan is the timer callback. It guards against duplicate
// concurrent scans of the same instance, triggers a processor drain
// when documents were queued, and finally re-arms the timer from fresh
// instance configuration.
func (s *Scheduler) runInstanceScan(ctx context.Context, id string) {
	s.mu.Lock()
	if _, inFlight := s.scanning[id]; inFlight {
		s.mu.Unlock()
		s.log.Debug("Scan already in flight", "instance_id", id)
		return
	}
	s.scanning[id] = struct{}{}
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic during instance scan", "instance_id", id, "panic", r)
		}
		s.mu.Lock()
		delete(s.scanning, id)
		s.mu.Unlock()
		s.scheduleNextScan(ctx, id)
	}()

	result := s.scanner.ScanInstance(ctx, id)
	if result.Error != "" {
		s.log.Error("Instance scan failed",
			"instance_id", id,
			"instance_name", result.InstanceName,
			"error", result.Error)
		return
	}

	s.log.Info("Instance scan completed",
		"instance_id", id,
		"instance_name", result.InstanceName,
		"queued", result.DocumentsQueued,
		"already_processed", result.DocumentsAlreadyProcessed,
		"already_queued", result.DocumentsAlreadyQueued)

	if result.DocumentsQueued > 0 {
		s.TriggerProcessor(ctx)
	}
}

// scheduleNextScan re-arms the instance timer after a scan completes.
// The instance is re-fetched so cron or enablement changes made during
// the scan take effect; a stopped scheduler never re-arms.
func (s *Scheduler) scheduleNextScan(ctx context.Context, id string) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		s.log.Debug("Scheduler stopped, not rescheduling", "instance_id", id)
		return
	}

	instance, err := s.instances.GetByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to refetch instance for rescheduling",
			"instance_id", id,
			"error", err)
		return
	}

	if !instance.AutoProcessEnabled {
		s.UnscheduleInstance(id)
		s.log.Info("Instance auto-processing disabled, not rescheduling", "instance_id", id)
		return
	}

	if err := s.ScheduleInstance(instance.ID, instance.Name, instance.ScanCron, instance.NextScanAt); err != nil {
		s.log.Error("Failed to reschedule instance",
			"instance_id", id,
			"instance_name", instance.Name,
			"error", err)
	}
}

// TriggerProcessor starts a queue drain unless one is already running.
// A drain in flight absorbs the trigger: items queued meanwhile are
// picked up by the running drain's claim loop.
func (s *Scheduler) TriggerProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.processorBusy {
		s.mu.Unlock()
		s.log.Debug("Processor already draining, trigger absorbed")
		return
	}
	s.processorBusy = true
	s.mu.Unlock()

	go s.runProcessor(ctx)
}

func (s *Scheduler) runProcessor(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic during queue drain", "panic", r)
		}
		s.mu.Lock()
		s.processorBusy = false
		s.mu.Unlock()
	}()

	results := s.processor.ProcessAllPending(ctx)

	succeeded := 0
	failed := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	if len(results) > 0 {
		s.log.Info("Queue drain completed",
			"processed", len(results),
			"succeeded", succeeded,
			"failed", failed)
	}
}

// Status reports a snapshot of scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:            s.running,
		ScheduledInstances: len(s.timers),
		ProcessorActive:    s.processorBusy,
	}
}
