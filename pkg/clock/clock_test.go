package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_IsUTC(t *testing.T) {
	now := System{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestMock_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	m := NewMock(start)
	assert.Equal(t, start, m.Now())

	m.Advance(31 * time.Minute)
	assert.Equal(t, start.Add(31*time.Minute), m.Now())

	later := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	m.Set(later)
	assert.Equal(t, later, m.Now())
}
