package handler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/zitadel/logging"

	"github.com/authapp/zitadel/internal/eventstore"
)

// Manager registers and runs every Handler the process owns, plus
// supports Trigger() for the on-demand wakeup wait_for_projection needs
// (SPEC_FULL.md §4.4/§10): rather than waiting out the poll interval, a
// caller that just pushed a command can ask the relevant projection to
// run immediately.
type Manager struct {
	cfg      Config
	workerID string

	mu       sync.Mutex
	workers  map[string]*worker
	cancels  map[string]context.CancelFunc
	triggers map[string]chan struct{}

	cron *cron.Cron
}

// NewManager builds a Manager whose workers share cfg's storage,
// locker, and tunables. A random worker id distinguishes this process's
// lock ownership from any sibling process's, mirroring the teacher's
// per-process subscription identity.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		workerID: uuid.NewString(),
		workers:  make(map[string]*worker),
		cancels:  make(map[string]context.CancelFunc),
		triggers: make(map[string]chan struct{}),
		cron:     cron.New(),
	}
}

// Register adds h to the set of projections this Manager runs, and
// ensures its schema exists.
func (m *Manager) Register(ctx context.Context, h Handler) error {
	cfg := m.cfg
	cfg.WorkerID = m.workerID
	w := NewWorker(h, cfg)
	if err := w.EnsureSchema(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.workers[h.Name()] = w
	m.triggers[h.Name()] = make(chan struct{}, 1)
	m.mu.Unlock()
	return nil
}

// Start launches every registered projection's run loop for
// instanceID, plus a periodic cron tick that nudges each projection in
// case its Trigger channel was missed (spec.md §4.4: "the engine also
// polls on a fixed interval as a correctness backstop").
func (m *Manager) Start(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, w := range m.workers {
		wctx, cancel := context.WithCancel(ctx)
		m.cancels[name] = cancel
		trigger := m.triggers[name]
		go m.runLoop(wctx, w, instanceID, trigger)
	}

	if _, err := m.cron.AddFunc("@every 1m", func() {
		m.mu.Lock()
		names := make([]string, 0, len(m.triggers))
		for name := range m.triggers {
			names = append(names, name)
		}
		m.mu.Unlock()
		for _, name := range names {
			m.Trigger(name)
		}
	}); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// runLoop is one projection's continuously-running worker, woken only
// by Trigger (which Start's once-a-minute cron job also calls);
// Config.PollInterval is not consulted here.
func (m *Manager) runLoop(ctx context.Context, w *worker, instanceID string, trigger chan struct{}) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := w.runOnce(ctx, instanceID); err != nil && !quietRetry(err) {
			logging.WithFields("projection", w.h.Name(), "instanceID", instanceID).WithError(err).Warn("projection run failed")
		}
		select {
		case <-trigger:
		case <-ctx.Done():
			return
		}
	}
}

// Trigger nudges name's projection to run immediately rather than
// waiting for its next poll tick, used by wait_for_projection
// (SPEC_FULL.md §10) right after a command commits events the caller
// wants reflected in the read model.
func (m *Manager) Trigger(name string) {
	m.mu.Lock()
	ch, ok := m.triggers[name]
	m.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ResolveFailedEventDecision is the operator's choice when resolving a
// quarantined failed event (spec.md §4.4 resolve_failed_event).
type ResolveFailedEventDecision int

const (
	// ResolveRetry clears the event's failed-event record so the
	// projection's own run loop re-attempts it fresh on its next pass,
	// rather than being quarantined again on sight.
	ResolveRetry ResolveFailedEventDecision = iota
	// ResolveSkip marks the event permanently skipped: the projection
	// advances past it without ever re-applying its mutation.
	ResolveSkip
)

// ResolveFailedEvent is the operator operation spec.md §4.4 names:
// re-attempt a quarantined event, or mark it permanently skipped.
func (m *Manager) ResolveFailedEvent(ctx context.Context, projection, instanceID string, sequence uint64, decision ResolveFailedEventDecision) error {
	m.mu.Lock()
	w, ok := m.workers[projection]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if decision == ResolveSkip {
		if err := m.cfg.FailedEvents.MarkSkipped(ctx, projection, sequence, instanceID); err != nil {
			return err
		}
		failedEventsBacklog.WithLabelValues(projection).Dec()
		return w.skipPast(ctx, instanceID, sequence)
	}
	// ResolveRetry: clear the failed-event record so the worker's next
	// pass re-attempts the event with a clean failure count instead of
	// being quarantined again on sight.
	tx, err := m.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	resolved, err := m.cfg.FailedEvents.Resolve(ctx, tx, projection, sequence, instanceID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if resolved {
		failedEventsBacklog.WithLabelValues(projection).Dec()
	}
	return nil
}

// Stop halts every running projection and the cron backstop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.cron.Stop()
}

// CurrentPosition returns name's last committed position for
// instanceID, used by wait_for_projection to decide whether the
// projection has already caught up.
func (m *Manager) CurrentPosition(ctx context.Context, name, instanceID string) (eventstore.Position, error) {
	m.mu.Lock()
	w, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return eventstore.ZeroPosition, nil
	}
	return w.readPosition(ctx, instanceID)
}
