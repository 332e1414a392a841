package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerInfo describes where a cron expression sits relative to a reference
// time. The sync status API uses it to report when the timer trigger last
// fired and when it fires next.
type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	nextTime := schedule.Next(refTime)

	// Walk backwards hour by hour until a fire time at or before refTime
	// is found. Bounded at one year.
	var prevTime time.Time
	searchStart := refTime.Add(-time.Minute)
	for i := 0; i < 366*24; i++ {
		checkTime := searchStart.Add(-time.Duration(i) * time.Hour)
		candidateNext := schedule.Next(checkTime)
		if candidateNext.Before(refTime) || candidateNext.Equal(refTime) {
			prevTime = candidateNext
			break
		}
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       nextTime,
		Last:       prevTime,
	}
	if !prevTime.IsZero() {
		info.TimeSinceLast = refTime.Sub(prevTime)
	}
	info.TimeUntilNext = nextTime.Sub(refTime)

	return info, nil
}
