package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_RecordCycle(t *testing.T) {
	s := NewState()
	assert.True(t, s.LastCycle().IsZero())
	assert.False(t, s.Stale(time.Now(), time.Minute))

	at := time.Unix(1700000000, 0)
	s.RecordCycle(at, 3, 1)
	s.RecordCycle(at, 4, 0)

	assert.EqualValues(t, 2, s.Cycles())
	priced, failed := s.LastCycleCounts()
	assert.Equal(t, 4, priced)
	assert.Zero(t, failed)
	assert.Equal(t, at, s.LastCycle())

	assert.False(t, s.Stale(at.Add(30*time.Second), time.Minute))
	assert.True(t, s.Stale(at.Add(2*time.Minute), time.Minute))
	assert.False(t, s.Stale(at.Add(2*time.Minute), 0))
}
