package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewThreadID(t *testing.T) {
	now := time.Date(2026, time.March, 4, 17, 5, 9, 0, time.UTC)

	assert.Equal(t, "user@20260304_170509S", NewThreadID(now))
}

func TestNewThreadID_LaterSortsFirstDescending(t *testing.T) {
	earlier := NewThreadID(time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC))
	later := NewThreadID(time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC))

	assert.Greater(t, later, earlier)
}
