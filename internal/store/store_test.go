package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "reminder", KindReminder.String())
	assert.Equal(t, "join_announcement", KindJoinAnnouncement.String())
	assert.Equal(t, "status_in_progress", KindStatusInProgress.String())
	assert.Equal(t, "status_completed", KindStatusCompleted.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindReminder, KindJoinAnnouncement, KindStatusInProgress, KindStatusCompleted} {
		assert.True(t, k.Valid(), k.String())
	}
	assert.False(t, Kind(-1).Valid())
	assert.False(t, Kind(4).Valid())
}

func TestKindIsStatus(t *testing.T) {
	assert.False(t, KindReminder.IsStatus())
	assert.False(t, KindJoinAnnouncement.IsStatus())
	assert.True(t, KindStatusInProgress.IsStatus())
	assert.True(t, KindStatusCompleted.IsStatus())
}
