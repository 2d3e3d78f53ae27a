package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderNotifyFunction(t *testing.T) {
	sql := renderNotifyFunction(15 * time.Minute)
	assert.Contains(t, sql, "CREATE OR REPLACE FUNCTION notify_schedule_change()")
	assert.Contains(t, sql, "make_interval(secs => 900)")
	assert.Contains(t, sql, "pg_notify('schedule_changed'")
}

func TestRenderNotifyFunctionDefaultsWhenUnset(t *testing.T) {
	for _, horizon := range []time.Duration{0, -time.Minute} {
		sql := renderNotifyFunction(horizon)
		assert.Contains(t, sql, "make_interval(secs => 600)", "horizon %v", horizon)
	}
}
