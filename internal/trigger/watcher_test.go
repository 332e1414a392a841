package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPinger struct {
	results []error
	pos     int
}

func (p *scriptedPinger) Ping(context.Context) error {
	if p.pos >= len(p.results) {
		return nil
	}
	err := p.results[p.pos]
	p.pos++
	return err
}

func TestWatcher_FiresOnOfflineToOnlineTransition(t *testing.T) {
	offline := errors.New("no route to host")
	pinger := &scriptedPinger{results: []error{offline, offline, nil, nil, offline, nil}}

	fired := 0
	w := NewWatcher(pinger, 0, func(context.Context) { fired++ })

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		w.probe(ctx)
	}

	// Two offline→online transitions: probes 3 and 6.
	assert.Equal(t, 2, fired)
}

func TestWatcher_FirstProbeOnlyEstablishesBaseline(t *testing.T) {
	pinger := &scriptedPinger{results: []error{nil, nil}}

	fired := 0
	w := NewWatcher(pinger, 0, func(context.Context) { fired++ })

	ctx := context.Background()
	w.probe(ctx)
	w.probe(ctx)

	assert.Equal(t, 0, fired, "healthy probes must not duplicate the startup trigger")
}

func TestSchedule_RejectsInvalidExpression(t *testing.T) {
	c := cron.New()
	_, err := Schedule(c, "not-a-cron", func(context.Context) {})
	require.Error(t, err)
}

func TestReschedule_ReplacesEntry(t *testing.T) {
	c := cron.New()
	id, err := Schedule(c, "* * * * *", func(context.Context) {})
	require.NoError(t, err)

	next, err := Reschedule(c, id, "*/5 * * * *", func(context.Context) {})
	require.NoError(t, err)
	assert.NotEqual(t, id, next)
	require.Len(t, c.Entries(), 1)

	// An invalid replacement keeps the old entry in place.
	same, err := Reschedule(c, next, "bad", func(context.Context) {})
	require.Error(t, err)
	assert.Equal(t, next, same)
	require.Len(t, c.Entries(), 1)
}
