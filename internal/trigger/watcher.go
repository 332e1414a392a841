package trigger

import (
	"context"
	"time"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/pkg/log"
)

// Pinger probes whether the upload endpoint is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Func is a sync-engine entry point bound to a trigger source.
type Func func(ctx context.Context)

// Watcher polls endpoint reachability and fires only on the offline→online
// transition. The periodic cron trigger covers the case where the probe
// interval misses a short connectivity window.
type Watcher struct {
	pinger   Pinger
	fire     Func
	interval time.Duration

	// online is meaningful only after the first probe establishes a
	// baseline; firing on the very first success would duplicate the
	// startup trigger.
	probed bool
	online bool
}

func NewWatcher(pinger Pinger, interval time.Duration, fire Func) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{
		pinger:   pinger,
		fire:     fire,
		interval: interval,
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	online := w.pinger.Ping(probeCtx) == nil
	wasOnline := w.online
	hadBaseline := w.probed
	w.online = online
	w.probed = true

	if !hadBaseline {
		log.Debug("Connectivity baseline established: online=%v", online)
		return
	}
	if online && !wasOnline {
		log.Info("Connectivity restored, requesting sync")
		w.fire(ctx)
	}
}
