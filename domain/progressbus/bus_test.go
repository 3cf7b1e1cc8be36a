package progressbus

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/transcribe-core/domain/store"
)

func newTestBus() *bus {
	return &bus{
		subscriptions: make(map[int64]map[*subscription]struct{}),
		bufferSize:    DefaultBufferSize,
		log:           slog.Default(),
	}
}

func TestBus_PublishDeliversInOrder(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe(1)
	defer sub.Close()

	b.Publish(1, NewStatusEvent(1, store.JobPending, Progress(0), ""))
	b.Publish(1, NewStatusEvent(1, store.JobProcessing, Progress(60), ""))
	b.Publish(1, NewStatusEvent(1, store.JobCompleted, Progress(100), ""))

	first := <-sub.Events()
	second := <-sub.Events()
	third := <-sub.Events()

	assert.Equal(t, store.JobPending, first.Status)
	assert.Equal(t, store.JobProcessing, second.Status)
	assert.Equal(t, store.JobCompleted, third.Status)
}

func TestBus_PublishToUnsubscribedJobIsNoop(t *testing.T) {
	b := newTestBus()
	assert.NotPanics(t, func() {
		b.Publish(999, NewStatusEvent(999, store.JobPending, nil, ""))
	})
}

func TestBus_OverflowDropsOldestAndMarksLagging(t *testing.T) {
	b := newTestBus()
	b.bufferSize = 2
	sub := b.Subscribe(1).(*subscription)
	sub.ch = make(chan Event, 2)
	defer sub.Close()

	b.Publish(1, NewMessageEvent(1, "first"))
	b.Publish(1, NewMessageEvent(1, "second"))
	b.Publish(1, NewMessageEvent(1, "third")) // overflow: drops "first" and "second"

	e1 := <-sub.ch
	assert.Equal(t, EventLagging, e1.Type)

	e2 := <-sub.ch
	assert.Equal(t, "third", e2.Message)
}

func TestBus_CloseLastSubscriptionRemovesRoutingEntry(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe(1)
	sub.Close()

	b.mu.Lock()
	_, exists := b.subscriptions[1]
	b.mu.Unlock()
	assert.False(t, exists)
}

func TestBus_MultipleSubscribersEachReceiveEvents(t *testing.T) {
	b := newTestBus()
	sub1 := b.Subscribe(1)
	sub2 := b.Subscribe(1)
	defer sub1.Close()
	defer sub2.Close()

	b.Publish(1, NewStatusEvent(1, store.JobCompleted, Progress(100), ""))

	select {
	case e := <-sub1.Events():
		assert.Equal(t, store.JobCompleted, e.Status)
	case <-time.After(time.Second):
		t.Fatal("sub1 did not receive event")
	}
	select {
	case e := <-sub2.Events():
		assert.Equal(t, store.JobCompleted, e.Status)
	case <-time.After(time.Second):
		t.Fatal("sub2 did not receive event")
	}
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe(1)
	require.NotPanics(t, func() {
		sub.Close()
		sub.Close()
	})
}
