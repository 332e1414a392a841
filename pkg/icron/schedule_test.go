package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_EveryMinute(t *testing.T) {
	ref := time.Date(2026, 3, 14, 10, 30, 30, 0, time.UTC)

	info, err := GetTriggerInfo("* * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 31, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 30*time.Second, info.TimeUntilNext)
	assert.Equal(t, 30*time.Second, info.TimeSinceLast)
}

func TestGetTriggerInfo_InvalidExpression(t *testing.T) {
	_, err := GetTriggerInfo("not-a-cron", time.Now())
	require.Error(t, err)
}
