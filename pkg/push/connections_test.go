package push

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveConnections_SubscribeAndPublish(t *testing.T) {
	conns := NewActiveConnections()

	sub, err := conns.Subscribe("alice")
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	conns.Publish("alice", ActivityMessage)

	select {
	case msg := <-sub.Ch():
		assert.Equal(t, ActivityMessage, msg)
	case <-time.After(time.Second):
		t.Fatal("expected a published message")
	}
}

func TestActiveConnections_PublishToUnknownUserIsNoop(t *testing.T) {
	conns := NewActiveConnections()

	assert.NotPanics(t, func() {
		conns.Publish("nobody", FileMessage)
	})
	assert.Equal(t, 0, conns.SubscriberCount("nobody"))
}

func TestActiveConnections_FanOutReachesAllSubscribers(t *testing.T) {
	conns := NewActiveConnections()

	subs := make([]*Subscriber, 3)
	for i := range subs {
		sub, err := conns.Subscribe("alice")
		require.NoError(t, err)
		t.Cleanup(sub.Close)
		subs[i] = sub
	}

	conns.Publish("alice", NotificationMessage)

	for i, sub := range subs {
		select {
		case msg := <-sub.Ch():
			assert.Equal(t, NotificationMessage, msg, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the message", i)
		}
	}
}

func TestActiveConnections_PreservesPublishOrder(t *testing.T) {
	conns := NewActiveConnections()

	sub, err := conns.Subscribe("alice")
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	conns.Publish("alice", FileMessage)
	conns.Publish("alice", ActivityMessage)
	conns.Publish("alice", NotificationMessage)

	assert.Equal(t, FileMessage, <-sub.Ch())
	assert.Equal(t, ActivityMessage, <-sub.Ch())
	assert.Equal(t, NotificationMessage, <-sub.Ch())
}

func TestActiveConnections_DropsOldestOnOverflow(t *testing.T) {
	conns := NewActiveConnections()

	sub, err := conns.Subscribe("alice")
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	// Five messages into a buffer of four: the first one is dropped so the
	// newest hint survives.
	for i := 0; i < subscriberBuffer+1; i++ {
		conns.Publish("alice", CustomMessage("seq", fmt.Sprintf("%d", i)))
	}

	var bodies []string
	for i := 0; i < subscriberBuffer; i++ {
		msg := <-sub.Ch()
		bodies = append(bodies, msg.Body)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, bodies)

	select {
	case msg := <-sub.Ch():
		t.Fatalf("unexpected extra message %q", msg.String())
	default:
	}
}

func TestActiveConnections_ConnectionLimit(t *testing.T) {
	conns := NewActiveConnections()

	for i := 0; i < UserConnectionLimit; i++ {
		sub, err := conns.Subscribe("carol")
		require.NoError(t, err, "subscriber %d should be admitted", i+1)
		t.Cleanup(sub.Close)
	}

	_, err := conns.Subscribe("carol")
	require.ErrorIs(t, err, ErrLimitExceeded)
	assert.EqualError(t, err, "connection limit exceeded")

	// The cap is per user.
	sub, err := conns.Subscribe("dave")
	require.NoError(t, err)
	sub.Close()
}

func TestActiveConnections_ConcurrentSubscribeHonorsLimit(t *testing.T) {
	conns := NewActiveConnections()

	var wg sync.WaitGroup
	results := make(chan error, UserConnectionLimit*2)
	for i := 0; i < UserConnectionLimit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := conns.Subscribe("carol")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	admitted, rejected := 0, 0
	for err := range results {
		if err == nil {
			admitted++
		} else {
			require.ErrorIs(t, err, ErrLimitExceeded)
			rejected++
		}
	}
	assert.Equal(t, UserConnectionLimit, admitted)
	assert.Equal(t, UserConnectionLimit, rejected)
	assert.Equal(t, UserConnectionLimit, conns.SubscriberCount("carol"))
}

func TestActiveConnections_UnsubscribeFreesSlot(t *testing.T) {
	conns := NewActiveConnections()

	subs := make([]*Subscriber, UserConnectionLimit)
	for i := range subs {
		sub, err := conns.Subscribe("carol")
		require.NoError(t, err)
		subs[i] = sub
	}

	_, err := conns.Subscribe("carol")
	require.ErrorIs(t, err, ErrLimitExceeded)

	subs[0].Close()

	sub, err := conns.Subscribe("carol")
	require.NoError(t, err)
	sub.Close()

	for _, s := range subs[1:] {
		s.Close()
	}
}

func TestActiveConnections_EntrySurvivesLastUnsubscribe(t *testing.T) {
	conns := NewActiveConnections()

	sub, err := conns.Subscribe("alice")
	require.NoError(t, err)
	sub.Close()

	require.Equal(t, 0, conns.SubscriberCount("alice"))

	// The fan-out entry stays registered; publishing is still a safe no-op
	// and a new session reuses it.
	conns.Publish("alice", FileMessage)

	again, err := conns.Subscribe("alice")
	require.NoError(t, err)
	defer again.Close()

	conns.Publish("alice", ActivityMessage)
	select {
	case msg := <-again.Ch():
		// No replay: the pre-subscribe publish must not be delivered.
		assert.Equal(t, ActivityMessage, msg)
	case <-time.After(time.Second):
		t.Fatal("expected the post-subscribe message")
	}
}

func TestResetBroadcast_WakesAllWatchers(t *testing.T) {
	reset := NewResetBroadcast()

	first := reset.Watch()
	second := reset.Watch()
	reset.Signal()

	for _, ch := range []<-chan struct{}{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("watcher not woken by reset signal")
		}
	}

	// A watcher taken after the signal waits for the next generation.
	third := reset.Watch()
	select {
	case <-third:
		t.Fatal("fresh watcher should not fire for a past signal")
	default:
	}

	reset.Signal()
	select {
	case <-third:
	case <-time.After(time.Second):
		t.Fatal("watcher not woken by second signal")
	}
}
