package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nestegg/savings-engine/events"
)

func TestEmitter_CallsListenersInOrder(t *testing.T) {
	var e events.Emitter
	var calls []string

	e.Subscribe(func() { calls = append(calls, "a") })
	e.Subscribe(func() { calls = append(calls, "b") })

	e.Emit()

	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestEmitter_UnsubscribeStopsDelivery(t *testing.T) {
	var e events.Emitter
	count := 0

	stop := e.Subscribe(func() { count++ })
	e.Emit()
	stop()
	stop() // second call is a no-op
	e.Emit()

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, e.Len())
}

func TestEmitter_ListenerMayResubscribeDuringEmit(t *testing.T) {
	// GIVEN: A listener that subscribes another listener while being notified
	// WHEN: Emitting twice
	// THEN: The new listener only sees the second emit and nothing deadlocks
	var e events.Emitter
	late := 0

	var once bool
	e.Subscribe(func() {
		if !once {
			once = true
			e.Subscribe(func() { late++ })
		}
	})

	e.Emit()
	e.Emit()

	assert.Equal(t, 1, late)
}

func TestEmitter_NoListeners(t *testing.T) {
	var e events.Emitter
	assert.NotPanics(t, e.Emit)
}
