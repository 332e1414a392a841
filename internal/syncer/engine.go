package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/notify"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/pkg/log"
)

// Deliverer posts one job to the upload endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, job *queue.Job) error
}

// Result summarizes one sync pass.
type Result struct {
	Source     string    `json:"source"`
	Delivered  int       `json:"delivered"`
	Remaining  int       `json:"remaining"`
	Stopped    bool      `json:"stopped"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// attemptWarnThreshold is where a job's retry history starts looking like a
// permanently rejected submission. Observability only; delivery behavior is
// unchanged.
const attemptWarnThreshold = 10

// Engine drains the job store to the upload endpoint: oldest first, strictly
// sequential, stopping at the first failed delivery. Every entry point —
// startup, online transition, timer, wake, manual — funnels through Trigger,
// where concurrent calls coalesce onto the pass already in flight.
type Engine struct {
	store    queue.Store
	client   Deliverer
	manager  *queue.Manager
	notifier *notify.Notifier

	group singleflight.Group

	mu      sync.Mutex
	lastRun *Result
}

func NewEngine(store queue.Store, client Deliverer, manager *queue.Manager, notifier *notify.Notifier) *Engine {
	return &Engine{
		store:    store,
		client:   client,
		manager:  manager,
		notifier: notifier,
	}
}

// Trigger runs a sync pass, or joins the one already running. The returned
// Result is shared between all coalesced callers.
func (e *Engine) Trigger(ctx context.Context, source string) Result {
	v, _, shared := e.group.Do("sync", func() (interface{}, error) {
		return e.run(ctx, source), nil
	})
	res := v.(Result)
	if shared && res.Source != source {
		log.Debug("Sync trigger %q joined in-flight pass from %q", source, res.Source)
	}
	return res
}

// LastRun reports the most recent completed pass, if any.
func (e *Engine) LastRun() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastRun == nil {
		return Result{}, false
	}
	return *e.lastRun, true
}

func (e *Engine) run(ctx context.Context, source string) Result {
	res := Result{Source: source}
	defer func() {
		res.FinishedAt = time.Now()
		e.mu.Lock()
		e.lastRun = &res
		e.mu.Unlock()
	}()

	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		log.Error("Sync pass (%s) could not list jobs: %v", source, err)
		res.Error = err.Error()
		return res
	}
	if len(keys) == 0 {
		// Nothing queued: finish with no side effects.
		return res
	}

	// Keys are creation timestamps, so ascending key order is submission
	// order at the destination.
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	e.manager.SetSyncing(true)
	defer e.manager.SetSyncing(false)

	e.publish(notify.Event{
		Type:         notify.EventSyncStarted,
		PendingCount: e.manager.PendingCount(),
		IsSyncing:    true,
	})
	log.Info("Sync pass (%s) started: %d job(s) pending", source, len(keys))

	for _, key := range keys {
		job, err := e.store.GetJob(ctx, key)
		if errors.Is(err, queue.ErrJobNotFound) {
			// Another execution context already delivered it.
			continue
		}
		if err != nil {
			var malformed *queue.MalformedJobError
			if errors.As(err, &malformed) {
				log.Error("Sync pass (%s) hit malformed job %d, leaving it for inspection: %v", source, key, err)
			} else {
				log.Error("Sync pass (%s) could not read job %d: %v", source, key, err)
			}
			res.Stopped = true
			res.Error = err.Error()
			e.publishFailure(err.Error())
			return res
		}

		if err := e.client.Deliver(ctx, job); err != nil {
			e.recordFailure(ctx, source, job, err)
			res.Stopped = true
			res.Error = err.Error()
			res.Remaining = e.manager.PendingCount()
			return res
		}

		if err := e.store.DeleteJob(ctx, key); err != nil {
			// The job was delivered but not removed; the next pass will
			// redeliver it. At-least-once, so stop here rather than risk
			// widening the window.
			log.Error("Delivered job %d could not be deleted: %v", key, err)
			res.Stopped = true
			res.Error = err.Error()
			return res
		}

		res.Delivered++
		pending := e.manager.JobDelivered()
		log.Info("Job %s (load %s) uploaded after %d prior attempt(s)", job.ID, job.LoadID(), job.AttemptCount)
		e.publish(notify.Event{
			Type:         notify.EventJobSynced,
			JobID:        job.ID,
			LoadID:       job.LoadID(),
			PendingCount: pending,
			IsSyncing:    true,
		})
	}

	log.Info("Sync pass (%s) drained the queue: %d job(s) uploaded", source, res.Delivered)
	e.publish(notify.Event{
		Type:         notify.EventQueueDrained,
		PendingCount: e.manager.PendingCount(),
		IsSyncing:    false,
	})
	return res
}

// recordFailure persists the failed attempt for observability and stops the
// pass. A server-side error is likely to recur for the jobs behind this one,
// so the whole sync defers to the next trigger.
func (e *Engine) recordFailure(ctx context.Context, source string, job *queue.Job, deliveryErr error) {
	job.Status = queue.StatusFailed
	job.AttemptCount++
	job.LastError = deliveryErr.Error()
	if err := e.store.PutJob(ctx, job); err != nil {
		log.Error("Could not record failed attempt for job %s: %v", job.ID, err)
	}

	log.Warn("Sync pass (%s) stopped at job %s (load %s): %v", source, job.ID, job.LoadID(), deliveryErr)
	if job.AttemptCount >= attemptWarnThreshold {
		log.Warn("Job %s has failed %d attempts; the endpoint may be rejecting it permanently", job.ID, job.AttemptCount)
	}
	e.publishFailure(deliveryErr.Error())
}

func (e *Engine) publishFailure(message string) {
	e.publish(notify.Event{
		Type:         notify.EventSyncFailed,
		PendingCount: e.manager.PendingCount(),
		IsSyncing:    false,
		Message:      message,
	})
}

func (e *Engine) publish(ev notify.Event) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(ev)
}
