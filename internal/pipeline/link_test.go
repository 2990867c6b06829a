package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/EspressoLine/internal/machine"
)

func TestLinkFIFOPerProducer(t *testing.T) {
	tx, rx := NewLink("test")

	for i := 0; i < 100; i++ {
		require.NoError(t, tx.Send(Message{OrderID: i}))
	}
	tx.Close()

	for i := 0; i < 100; i++ {
		msg, ok := rx.Recv()
		require.True(t, ok)
		assert.Equal(t, i, msg.OrderID)
	}
	_, ok := rx.Recv()
	assert.False(t, ok)
}

func TestLinkClosesAfterLastSender(t *testing.T) {
	tx, rx := NewLink("test")
	tx2 := tx.Clone()

	tx.Close()
	require.NoError(t, tx2.Send(Message{OrderID: 7}))

	msg, ok := rx.Recv()
	require.True(t, ok)
	assert.Equal(t, 7, msg.OrderID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := rx.Recv()
		assert.False(t, ok)
	}()

	select {
	case <-done:
		t.Fatal("receiver returned before last sender closed")
	case <-time.After(20 * time.Millisecond):
	}

	tx2.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receiver did not observe closure")
	}
}

func TestLinkCloseIdempotent(t *testing.T) {
	tx, rx := NewLink("test")
	tx2 := tx.Clone()

	tx.Close()
	tx.Close()
	require.NoError(t, tx2.Send(Message{OrderID: 1}))
	tx2.Close()

	_, ok := rx.Recv()
	assert.True(t, ok)
	_, ok = rx.Recv()
	assert.False(t, ok)
}

func TestSendAfterCloseFails(t *testing.T) {
	tx, _ := NewLink("test")
	tx.Close()

	err := tx.Send(Message{OrderID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSenderClosed)
	assert.ErrorIs(t, err, machine.ErrTransport)
}

func TestSendAfterDropReportsConsumerGone(t *testing.T) {
	tx, rx := NewLink("water")
	require.NoError(t, tx.Send(Message{OrderID: 1}))

	assert.Equal(t, 1, rx.Drop())

	err := tx.Send(Message{OrderID: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConsumerGone)

	var f *machine.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, machine.Transport, f.Type)
	assert.Equal(t, "water", f.Subsystem)
}

func TestLinkConcurrentProducers(t *testing.T) {
	tx, rx := NewLink("test")
	const producers, each = 4, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		s := tx.Clone()
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer s.Close()
			for i := 0; i < each; i++ {
				_ = s.Send(Message{OrderID: p*1000 + i})
			}
		}(p)
	}
	tx.Close()

	last := map[int]int{}
	count := 0
	for {
		msg, ok := rx.Recv()
		if !ok {
			break
		}
		p, i := msg.OrderID/1000, msg.OrderID%1000
		if prev, seen := last[p]; seen {
			assert.Greater(t, i, prev, "producer %d out of order", p)
		}
		last[p] = i
		count++
	}
	wg.Wait()
	assert.Equal(t, producers*each, count)
}

func TestBarrier(t *testing.T) {
	var b Barrier
	h1 := b.Register()
	h2 := b.Register()
	assert.Equal(t, 2, b.Pending())

	released := make(chan struct{})
	go func() {
		b.Wait()
		close(released)
	}()

	h1.Release()
	h1.Release()
	assert.Equal(t, 1, b.Pending())

	select {
	case <-released:
		t.Fatal("Wait returned with a handle outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	h2.Release()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, 0, b.Pending())
}
