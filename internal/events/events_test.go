package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsIdentity(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	a := New(PoolCreated, 7, at)
	b := New(PoolCreated, 7, at)

	assert.Equal(t, PoolCreated, a.Type)
	assert.Equal(t, uint64(7), a.PoolID)
	assert.Equal(t, at, a.Timestamp)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "every event gets a distinct id")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	at := time.Now()

	r.Emit(New(PoolCreated, 1, at))
	r.Emit(New(SharesMinted, 1, at))
	r.Emit(New(PoolCreated, 2, at))

	require.Len(t, r.All(), 3)

	created := r.OfType(PoolCreated)
	require.Len(t, created, 2)
	assert.Equal(t, uint64(1), created[0].PoolID)
	assert.Equal(t, uint64(2), created[1].PoolID)

	assert.Empty(t, r.OfType(OrderFilled))
}

func TestMultiFansOut(t *testing.T) {
	a := &Recorder{}
	b := &Recorder{}
	sink := Multi{a, b, Nop{}}

	sink.Emit(New(DissolutionCompleted, 3, time.Now()))

	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}
