package notify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dynpro/NextBI/notify"
	"github.com/Dynpro/NextBI/tokenstore"
	"github.com/Dynpro/NextBI/users"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := notify.NewBus()

	var order []string
	bus.Subscribe(func(notify.Event) { order = append(order, "first") })
	bus.Subscribe(func(notify.Event) { order = append(order, "second") })
	bus.Subscribe(func(notify.Event) { order = append(order, "third") })

	bus.Publish(notify.Event{Method: tokenstore.MethodDev})

	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBusCarriesPayload(t *testing.T) {
	bus := notify.NewBus()

	var got notify.Event
	bus.Subscribe(func(event notify.Event) { got = event })

	bus.Publish(notify.Event{
		Method: tokenstore.MethodProvider,
		User:   &users.User{ID: "user-1"},
	})

	require.Equal(t, tokenstore.MethodProvider, got.Method)
	require.Equal(t, "user-1", got.User.ID)
}

func TestBusNoReplayForLateSubscribers(t *testing.T) {
	bus := notify.NewBus()

	bus.Publish(notify.Event{Method: tokenstore.MethodDev})

	called := false
	bus.Subscribe(func(notify.Event) { called = true })

	require.False(t, called)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := notify.NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(func(notify.Event) { calls++ })

	bus.Publish(notify.Event{})
	unsubscribe()
	bus.Publish(notify.Event{})

	require.Equal(t, 1, calls)
}

func TestBusUnsubscribeTwice(t *testing.T) {
	bus := notify.NewBus()

	unsubscribe := bus.Subscribe(func(notify.Event) {})
	unsubscribe()
	unsubscribe() // second call is a no-op

	bus.Publish(notify.Event{})
}

func TestBusSubscribeDuringPublish(t *testing.T) {
	bus := notify.NewBus()

	lateCalled := false
	bus.Subscribe(func(notify.Event) {
		bus.Subscribe(func(notify.Event) { lateCalled = true })
	})

	// The handler registered mid-publish must not receive the in-flight
	// event.
	bus.Publish(notify.Event{})
	require.False(t, lateCalled)

	bus.Publish(notify.Event{})
	require.True(t, lateCalled)
}
