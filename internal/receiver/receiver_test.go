package receiver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"fleet-track/internal/domain"
	"fleet-track/internal/metrics"
)

type frameSink struct {
	mu     sync.Mutex
	frames []*domain.Frame
	notify chan struct{}
}

func newFrameSink() *frameSink {
	return &frameSink{notify: make(chan struct{}, 16)}
}

func (s *frameSink) handle(_ context.Context, f *domain.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *frameSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *frameSink) get(i int) *domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[i]
}

func waitFor(t *testing.T, sink *frameSink, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for sink.count() < n {
		select {
		case <-sink.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d frames, got %d", n, sink.count())
		}
	}
}

func TestRun_ConsumesFramesAndSkipsMalformed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	handshakes := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		handshakes <- string(buf)

		conn.Write([]byte(`{"IMEI":"356307042441013","lat":52.2297,"lon":21.0122,"speedGps":42}` + "\n"))
		conn.Write([]byte("this is not json\n"))
		conn.Write([]byte("\n"))
		conn.Write([]byte(`{"IMEI":"356307042441013","lat":52.2300,"lon":21.0130,"speedGps":45}` + "\n"))
	}()

	sink := newFrameSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rcv := New(ln.Addr().String(), "Hello", 10*time.Millisecond, 2, sink.handle)
	done := make(chan error, 1)
	go func() { done <- rcv.Run(ctx) }()

	waitFor(t, sink, 2)
	cancel()
	<-done

	select {
	case hs := <-handshakes:
		if hs != "Hello" {
			t.Errorf("expected handshake %q, got %q", "Hello", hs)
		}
	default:
		t.Error("handshake never reached the server")
	}

	if sink.count() != 2 {
		t.Fatalf("expected 2 frames (malformed skipped), got %d", sink.count())
	}
	f := sink.get(0)
	if f.IMEI != "356307042441013" || f.SpeedGPS != 42 {
		t.Errorf("unexpected frame %+v", f)
	}
	if f.ReceivedAt.IsZero() {
		t.Error("expected ReceivedAt stamped on decode")
	}
}

func TestRun_ReconnectsAfterDrop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for i := 0; i < 2; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 5)
			conn.Read(buf)
			conn.Write([]byte(`{"IMEI":"356307042441013","lat":52.0,"lon":21.0}` + "\n"))
			conn.Close() // drop, the receiver should come back
		}
	}()

	sink := newFrameSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := metrics.Reconnects.Load()
	rcv := New(ln.Addr().String(), "Hello", 5*time.Millisecond, 5, sink.handle)
	done := make(chan error, 1)
	go func() { done <- rcv.Run(ctx) }()

	waitFor(t, sink, 2)
	cancel()
	<-done

	// the second frame only arrives over the second connection
	if got := metrics.Reconnects.Load() - before; got < 1 {
		t.Errorf("expected at least 1 reconnect counted, got %d", got)
	}
}

func TestRun_FirstConnectIsNotAReconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		conn.Read(buf)
		conn.Write([]byte(`{"IMEI":"356307042441013","lat":52.0,"lon":21.0}` + "\n"))
		<-hold // keep the connection open until the test ends
	}()

	sink := newFrameSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := metrics.Reconnects.Load()
	rcv := New(ln.Addr().String(), "Hello", 5*time.Millisecond, 5, sink.handle)
	done := make(chan error, 1)
	go func() { done <- rcv.Run(ctx) }()

	waitFor(t, sink, 1)
	if got := metrics.Reconnects.Load() - before; got != 0 {
		t.Errorf("first connect must not count as a reconnect, got %d", got)
	}
	cancel()
	<-done
}

func TestRun_RetriesExhausted(t *testing.T) {
	sink := newFrameSink()
	rcv := New("127.0.0.1:1", "Hello", time.Millisecond, 3, sink.handle)

	dials := 0
	rcv.dial = func(_ context.Context, _ string) (net.Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	err := rcv.Run(context.Background())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if dials != 3 {
		t.Errorf("expected 3 dial attempts, got %d", dials)
	}
}

func TestRun_ContextCancelStopsRetrying(t *testing.T) {
	sink := newFrameSink()
	rcv := New("127.0.0.1:1", "Hello", time.Hour, 10, sink.handle)
	rcv.dial = func(_ context.Context, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rcv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop on cancel")
	}
}
