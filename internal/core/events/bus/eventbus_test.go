package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := range 5 {
		_, err := b.SubscribeTopic("p1", "added", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.PublishToTopic("p1", NewEvent("added", "test", nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	_, _ = b.SubscribeTopic("", "x", func(Event) error { return errA })
	_, _ = b.SubscribeTopic("", "x", func(Event) error { return nil })
	_, _ = b.SubscribeTopic("", "x", func(Event) error { return errB })

	err := b.PublishToTopic("", NewEvent("x", "src", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestCancelDuringDeliveryAppliesNextPublish(t *testing.T) {
	b := New()
	calls := 0
	var sub Subscription
	sub, _ = b.SubscribeTopic("", "x", func(Event) error {
		calls++
		return sub.Cancel()
	})
	require.NoError(t, b.PublishToTopic("", NewEvent("x", "src", nil)))
	require.NoError(t, b.PublishToTopic("", NewEvent("x", "src", nil)))
	assert.Equal(t, 1, calls)
	assert.False(t, sub.IsActive())
	require.NoError(t, sub.Cancel())
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	count1, count2 := 0, 0
	_, _ = b.SubscribeTopic("t1", "ev", func(Event) error { count1++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(Event) error { count2++; return nil })
	_ = b.PublishToTopic("t1", NewEvent("ev", "src", nil))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 0, count2)
}

func TestNilHandlerRejected(t *testing.T) {
	_, err := New().SubscribeTopic("", "x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}
