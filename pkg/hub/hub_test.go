package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	kind int
	data []byte
}

// fakeConn feeds inbound messages from a channel and records writes.
type fakeConn struct {
	in      chan []byte
	out     chan frame
	closeMu sync.Once
	closed  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan frame, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.in:
		if !ok {
			return 0, nil, errors.New("closed by peer")
		}
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.out <- frame{kind: kind, data: data}
	return nil
}

func (f *fakeConn) Close() error {
	f.closeMu.Do(func() { close(f.closed) })
	return nil
}

// next returns the next non-ping write.
func (f *fakeConn) next(t *testing.T) frame {
	t.Helper()
	for {
		select {
		case fr := <-f.out:
			if fr.kind == websocket.PingMessage {
				continue
			}
			return fr
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for write")
			return frame{}
		}
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	return h
}

func TestHub_Broadcast(t *testing.T) {
	h := startHub(t)

	a, b := newFakeConn(), newFakeConn()
	go NewClient(h, a, nil).Run()
	go NewClient(h, b, nil).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]bool{"blinking": true}))

	for _, c := range []*fakeConn{a, b} {
		fr := c.next(t)
		assert.Equal(t, websocket.TextMessage, fr.kind)
		assert.JSONEq(t, `{"blinking":true}`, string(fr.data))
	}

	h.Broadcast(NewJSONMessage([]byte(`{"talking":false}`)))
	fr := b.next(t)
	assert.Equal(t, websocket.TextMessage, fr.kind)
	assert.JSONEq(t, `{"talking":false}`, string(fr.data))
}

func TestHub_ReplyGoesToSender(t *testing.T) {
	h := startHub(t)

	echo := func(data []byte) (Message, bool) {
		if string(data) == "skip" {
			return Message{}, false
		}
		return NewJSONMessage(append([]byte("re:"), data...)), true
	}

	sender, other := newFakeConn(), newFakeConn()
	go NewClient(h, sender, echo).Run()
	go NewClient(h, other, nil).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	sender.in <- []byte("skip")
	sender.in <- []byte("frame")
	assert.Equal(t, "re:frame", string(sender.next(t).data))

	select {
	case fr := <-other.out:
		if fr.kind != websocket.PingMessage {
			t.Errorf("Unexpected write to other client: %q", fr.data)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Disconnect(t *testing.T) {
	h := startHub(t)

	c := newFakeConn()
	go NewClient(h, c, nil).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	close(c.in)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("shutdown")
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)

	c := newFakeConn()
	go NewClient(h, c, nil).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Equal(t, websocket.CloseMessage, c.next(t).kind)
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, 5*time.Millisecond)

	// Registering after shutdown must not block.
	done := make(chan struct{})
	go func() {
		NewClient(h, newFakeConn(), nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NewClient blocked after shutdown")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle") // not running

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*sendBuffer; i++ {
			h.Broadcast(NewJSONMessage([]byte("{}")))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked")
	}
	assert.Equal(t, "idle", h.Name())
}
