package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishOrderAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewBus[string]()

	var got []string
	first := bus.Subscribe(func(_ context.Context, v string) { got = append(got, "first:"+v) })
	bus.Subscribe(func(_ context.Context, v string) { got = append(got, "second:"+v) })
	assert.Equal(t, 2, bus.Len())

	bus.Publish(ctx, "a")
	first.Unsubscribe()
	first.Unsubscribe()
	bus.Publish(ctx, "b")

	assert.Equal(t, []string{"first:a", "second:a", "second:b"}, got)
	assert.Equal(t, 1, bus.Len())
}

func TestBus_HandlerMayUnsubscribeItself(t *testing.T) {
	ctx := context.Background()
	var bus Bus[int]

	calls := 0
	var sub *Subscription
	sub = bus.Subscribe(func(context.Context, int) {
		calls++
		sub.Unsubscribe()
	})

	bus.Publish(ctx, 1)
	bus.Publish(ctx, 2)
	assert.Equal(t, 1, calls)
}

func TestBus_IndependentInstances(t *testing.T) {
	ctx := context.Background()
	a, b := NewBus[int](), NewBus[int]()

	hits := 0
	a.Subscribe(func(context.Context, int) { hits++ })
	b.Publish(ctx, 1)
	assert.Zero(t, hits)

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Unsubscribe)
}
