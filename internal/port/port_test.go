package port_test

import (
	"ntaio/internal/port"
	"ntaio/internal/status"
	"ntaio/internal/waitobj"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Port_PostRemoveMany(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	require.NoError(t, p.Post(123, 456, 789, 0))
	require.NoError(t, p.Post(12, 34, 56, 0))
	assert.Equal(t, 2, p.PendingCount())

	msgs, remaining, err := p.RemoveMany(2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	require.Len(t, msgs, 2)
	assert.Equal(t, port.Message{ Key: 123, Value: 456, Status: 789 }, msgs[0])
	assert.Equal(t, port.Message{ Key: 12, Value: 34, Status: 56 }, msgs[1])
	assert.Equal(t, 0, p.PendingCount())
}

func Test_Port_FIFO(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	for i := range 10 {
		require.NoError(t, p.Post(uint64(i), 0, status.Success, uint64(i * 2)))
	}

	msgs, remaining, err := p.RemoveMany(3, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
	for i, m := range msgs {
		assert.Equal(t, uint64(i), m.Key)
	}

	for i := 3; i < 10; i++ {
		m, err := p.RemoveOne(0)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), m.Key)
		assert.Equal(t, uint64(i * 2), m.Information)
	}
}

func Test_Port_Timeout(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	_, err := p.RemoveOne(0)
	assert.Equal(t, status.Timeout, status.Code(err))

	start := time.Now()
	_, _, err = p.RemoveMany(4, 20 * time.Millisecond, nil)
	assert.Equal(t, status.Timeout, status.Code(err))
	assert.GreaterOrEqual(t, time.Since(start), 20 * time.Millisecond)

	_, _, err = p.RemoveMany(0, 0, nil)
	assert.Equal(t, status.InvalidParameter, status.Code(err))
}

func Test_Port_BlockingWaiter(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	got := make(chan port.Message)
	go func() {
		m, err := p.RemoveOne(waitobj.Infinite)
		assert.NoError(t, err)
		got <- m
	}()

	require.Eventually(t, func() bool { return p.Waiters() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.Post(7, 8, status.Success, 9))

	select {
	case m := <-got:
		assert.Equal(t, uint64(7), m.Key)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
	assert.Equal(t, 0, p.Waiters())
}

func Test_Port_ConcurrentProducers(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	const producers, each = 4, 250
	var wg sync.WaitGroup
	for pr := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				assert.NoError(t, p.Post(uint64(pr), uint64(i), status.Success, 0))
			}
		}()
	}

	last := map[uint64]int{ 0: -1, 1: -1, 2: -1, 3: -1 }
	got := 0
	for got < producers * each {
		msgs, _, err := p.RemoveMany(16, time.Second, nil)
		require.NoError(t, err)
		for _, m := range msgs {
			// per producer order survives interleaving
			assert.Greater(t, int(m.Value), last[m.Key])
			last[m.Key] = int(m.Value)
		}
		got += len(msgs)
	}
	wg.Wait()
}

func Test_Port_AlertableNoMessage(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	th := waitobj.CreateThread("waiter")
	ran := false
	th.QueueAPC(func() { ran = true })

	msgs, _, err := p.RemoveMany(4, waitobj.Infinite, th)
	assert.Equal(t, status.UserAPC, status.Code(err))
	assert.Empty(t, msgs)
	assert.True(t, ran)

	// non alertable ignores APCs entirely
	th.QueueAPC(func() {})
	_, _, err = p.RemoveMany(4, 0, nil)
	assert.Equal(t, status.Timeout, status.Code(err))
	assert.Equal(t, 1, th.PendingAPCs())
}

func Test_Port_AlertableMessageWins(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	th := waitobj.CreateThread("waiter")
	require.NoError(t, p.Post(1, 2, status.Success, 3))
	th.QueueAPC(func() {})

	msgs, remaining, err := p.RemoveMany(4, waitobj.Infinite, th)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 1, th.PendingAPCs())

	// next call has nothing queued, so the APC is consumed
	_, _, err = p.RemoveMany(4, waitobj.Infinite, th)
	assert.Equal(t, status.UserAPC, status.Code(err))
	assert.Equal(t, 0, th.PendingAPCs())
}

func Test_Port_AlertableWokenByAPC(t *testing.T) {
	p := port.CreatePort()
	defer p.Close()

	th := waitobj.CreateThread("waiter")
	go func() {
		time.Sleep(10 * time.Millisecond)
		th.QueueAPC(func() {})
	}()

	_, _, err := p.RemoveMany(4, time.Second, th)
	assert.Equal(t, status.UserAPC, status.Code(err))
}

func Test_Port_Destroy(t *testing.T) {
	p := port.CreatePort()
	require.NoError(t, p.Retain())
	require.NoError(t, p.Post(1, 1, status.Success, 0))

	// the handle is gone but a bound file still holds the port
	require.NoError(t, p.Close())
	assert.False(t, p.Closed())
	_, err := p.RemoveOne(0)
	require.NoError(t, err)
	assert.Equal(t, status.InvalidHandle, status.Code(p.Close()), "handle closed twice")
	assert.Equal(t, status.InvalidHandle, status.Code(p.Retain()), "binding needs the handle")
	assert.False(t, p.Closed())

	// last reference discards what is queued
	require.NoError(t, p.Post(2, 2, status.Success, 0))
	require.NoError(t, p.Release())
	assert.True(t, p.Closed())
	assert.Equal(t, 0, p.PendingCount())

	assert.Equal(t, status.InvalidHandle, status.Code(p.Post(3, 3, status.Success, 0)))
	assert.Equal(t, status.InvalidHandle, status.Code(p.Close()))
	assert.Equal(t, status.InvalidHandle, status.Code(p.Release()))
	_, err = p.RemoveOne(0)
	assert.Equal(t, status.InvalidHandle, status.Code(err))
}

func Test_Port_DestroyWakesWaiters(t *testing.T) {
	p := port.CreatePort()

	res := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := p.RemoveOne(waitobj.Infinite)
			res <- err
		}()
	}
	require.Eventually(t, func() bool { return p.Waiters() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, p.Close())

	for range 2 {
		assert.Equal(t, status.AbandonedWait0, status.Code(<-res))
	}
}
