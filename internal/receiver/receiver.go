// Package receiver owns the upstream telemetry connection: a single
// long-lived TCP client that frames the inbound byte stream on newlines,
// decodes JSON frames and hands them to the pipeline in arrival order.
package receiver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"time"

	"fleet-track/internal/domain"
	"fleet-track/internal/metrics"
)

// ErrRetriesExhausted is returned by Run when the reconnect bound is hit.
// It is terminal for ingestion only; the caller decides what to do with the
// rest of the process.
var ErrRetriesExhausted = errors.New("receiver: reconnect attempts exhausted")

type FrameHandler func(ctx context.Context, f *domain.Frame)

type Receiver struct {
	addr      string
	handshake string
	delay     time.Duration
	maxRetry  int
	handle    FrameHandler

	// dial is swappable for tests
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

func New(addr, handshake string, delay time.Duration, maxRetry int, handle FrameHandler) *Receiver {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &Receiver{
		addr:      addr,
		handshake: handshake,
		delay:     delay,
		maxRetry:  maxRetry,
		handle:    handle,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		},
	}
}

// Run connects and consumes the stream until the context is canceled or the
// reconnect bound is exceeded. A successful connection resets the retry
// counter.
func (r *Receiver) Run(ctx context.Context) error {
	retries := 0
	connects := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := r.dial(ctx, r.addr)
		if err != nil {
			retries++
			log.Printf("[TCP] connect to %s failed (attempt %d/%d): %v", r.addr, retries, r.maxRetry, err)
			if retries >= r.maxRetry {
				log.Printf("[TCP] giving up after %d attempts, ingestion stopped", retries)
				return ErrRetriesExhausted
			}
			if err := r.wait(ctx); err != nil {
				return err
			}
			continue
		}

		retries = 0
		if connects > 0 {
			// the first connect is not a reconnect
			metrics.Reconnects.Add(1)
		}
		connects++
		log.Printf("[TCP] connected to %s", r.addr)

		r.consume(ctx, conn)
		log.Printf("[TCP] connection closed")

		if err := r.wait(ctx); err != nil {
			return err
		}
	}
}

// consume writes the handshake and reads newline-delimited frames until the
// connection drops or the context is canceled.
func (r *Receiver) consume(ctx context.Context, conn net.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		// unblocks the read loop on shutdown
		<-connCtx.Done()
		conn.Close()
	}()

	if _, err := conn.Write([]byte(r.handshake)); err != nil {
		log.Printf("[TCP] handshake write failed: %v", err)
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var f domain.Frame
		if err := json.Unmarshal(line, &f); err != nil {
			metrics.ParseFailures.Add(1)
			log.Printf("[TCP] JSON error: %v, chunk: %s", err, line)
			continue
		}
		f.ReceivedAt = time.Now().UTC()

		r.handle(ctx, &f)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("[TCP] read error: %v", err)
	}
}

func (r *Receiver) wait(ctx context.Context) error {
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
