package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/notify"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/pkg/log"
)

// SyncRequester asks the platform to run a sync pass once it can — the
// stand-in for background-sync registration. Best effort: a failure never
// blocks an enqueue.
type SyncRequester func(ctx context.Context)

// Manager bridges the submission form and the store. It owns the cached
// pending count and the syncing flag the UI renders.
type Manager struct {
	store        Store
	notifier     *notify.Notifier
	requestSync  SyncRequester
	refreshEvery time.Duration

	mu      sync.Mutex
	lastKey int64
	pending int
	syncing bool
}

type ManagerOption func(*Manager)

// WithSyncRequester wires the best-effort wake-up fired after every
// successful enqueue.
func WithSyncRequester(fn SyncRequester) ManagerOption {
	return func(m *Manager) {
		m.requestSync = fn
	}
}

// WithRefreshInterval overrides how often the cached pending count is
// re-read from the store.
func WithRefreshInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshEvery = d
		}
	}
}

func NewManager(store Store, notifier *notify.Notifier, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		notifier:     notifier,
		refreshEvery: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.hydrateCount(context.Background())
	return m
}

// Enqueue validates the submission, persists it as one job and reports it
// queued. A store failure surfaces as *QueueWriteError and nothing is
// considered saved.
func (m *Manager) Enqueue(ctx context.Context, metadata bol.Metadata, attachments []bol.Attachment) (*Job, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	if err := bol.ValidateAttachments(attachments); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &Job{
		Key:           m.nextKey(now),
		ID:            uuid.NewString(),
		SchemaVersion: SchemaVersion,
		Metadata:      metadata,
		Attachments:   attachments,
		Status:        StatusPending,
		CreatedAt:     now,
	}

	if err := m.store.PutJob(ctx, job); err != nil {
		return nil, &QueueWriteError{Err: err}
	}

	m.mu.Lock()
	m.pending++
	pending := m.pending
	syncing := m.syncing
	m.mu.Unlock()

	m.publish(notify.Event{
		Type:         notify.EventQueued,
		JobID:        job.ID,
		LoadID:       job.LoadID(),
		PendingCount: pending,
		IsSyncing:    syncing,
		Message:      "saved, will upload in background",
	})

	if m.requestSync != nil {
		m.requestSync(ctx)
	}
	return cloneJob(job), nil
}

// nextKey returns the creation timestamp in unix nanoseconds, bumped by one
// when the clock has not advanced so keys stay strictly monotonic.
func (m *Manager) nextKey(now time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := now.UnixNano()
	if key <= m.lastKey {
		key = m.lastKey + 1
	}
	m.lastKey = key
	return key
}

func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *Manager) IsSyncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncing
}

// SetSyncing records whether a sync pass is in flight. Called by the sync
// engine.
func (m *Manager) SetSyncing(v bool) {
	m.mu.Lock()
	m.syncing = v
	m.mu.Unlock()
}

// JobDelivered drops the cached count by one after a confirmed delivery.
func (m *Manager) JobDelivered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending > 0 {
		m.pending--
	}
	return m.pending
}

// RefreshCount re-reads the pending count from the store. The store can be
// drained underneath us by a detached sync process, so the cache cannot be
// trusted indefinitely.
func (m *Manager) RefreshCount(ctx context.Context) (int, error) {
	count, err := m.store.CountJobs(ctx)
	if err != nil {
		return m.PendingCount(), err
	}

	m.mu.Lock()
	changed := count != m.pending
	m.pending = count
	syncing := m.syncing
	m.mu.Unlock()

	if changed {
		m.publish(notify.Event{
			Type:         notify.EventQueued,
			PendingCount: count,
			IsSyncing:    syncing,
			Message:      "pending count refreshed",
		})
	}
	return count, nil
}

// Run refreshes the cached count on a fixed interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RefreshCount(ctx); err != nil {
				log.Warn("Failed to refresh pending count: %v", err)
			}
		}
	}
}

func (m *Manager) hydrateCount(ctx context.Context) {
	count, err := m.store.CountJobs(ctx)
	if err != nil {
		log.Error("Failed to count stored jobs: %v", err)
		return
	}
	m.mu.Lock()
	m.pending = count
	m.mu.Unlock()
}

func (m *Manager) publish(ev notify.Event) {
	if m.notifier == nil {
		return
	}
	m.notifier.Publish(ev)
}
