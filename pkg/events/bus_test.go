package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeDeliversEvent(t *testing.T) {
	b := New()
	sub, unsub := b.Subscribe()
	defer unsub()

	b.Publish(KindDHTPeerDiscovered, "sess1", map[string]string{"peer": "p1"})

	select {
	case ev := <-sub.Events():
		require.Equal(t, KindDHTPeerDiscovered, ev.Kind)
		require.Equal(t, uint64(1), ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSequenceNumbersAreMonotonicPerSession(t *testing.T) {
	b := New()
	sub, unsub := b.Subscribe()
	defer unsub()

	b.Publish(KindTransferProgress, "sessA", nil)
	b.Publish(KindTransferProgress, "sessA", nil)
	b.Publish(KindTransferProgress, "sessB", nil)

	var seqsA []uint64
	for i := 0; i < 3; i++ {
		ev := <-sub.Events()
		if ev.SessionID == "sessA" {
			seqsA = append(seqsA, ev.Seq)
		}
	}
	require.Equal(t, []uint64{1, 2}, seqsA)
}

func TestLossyChannelDropsOldestUnderBackpressure(t *testing.T) {
	b := New()
	sub, unsub := b.Subscribe()
	defer unsub()

	// Fill the buffer without draining, then publish one more lossy event:
	// the bus must not block the publisher.
	for i := 0; i < DefaultReliableBufferSize+5; i++ {
		done := make(chan struct{})
		go func() {
			b.Publish(KindDHTPeerDiscovered, "sess", i)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lossy publish blocked")
		}
	}

	// The five oldest events (payloads 0-4) were dropped to make room.
	ev := <-sub.Events()
	require.Equal(t, 5, ev.Payload)
}

func TestReliableEventsAreNeverDropped(t *testing.T) {
	b := New()
	sub, unsub := b.Subscribe()
	defer unsub()

	go func() {
		for i := 0; i < 5; i++ {
			b.Publish(KindCheckpointWaiting, "sess", i)
		}
	}()

	seen := 0
	for seen < 5 {
		select {
		case <-sub.Events():
			seen++
		case <-time.After(time.Second):
			t.Fatalf("only received %d of 5 reliable events", seen)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub, unsub := b.Subscribe()
	unsub()

	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestCloseUnblocksAllSubscribers(t *testing.T) {
	b := New()
	sub1, _ := b.Subscribe()
	sub2, _ := b.Subscribe()
	b.Close()

	_, ok1 := <-sub1.Events()
	_, ok2 := <-sub2.Events()
	require.False(t, ok1)
	require.False(t, ok2)
}
