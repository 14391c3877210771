package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"

	"github.com/tracewire/tracewire/internal/infrastructure/resilience"
)

// TransmissionError reports a transient failure to deliver a batch to the
// collector. The queue retries these with backoff and eventually drops
// the batch; it never surfaces to request handling.
type TransmissionError struct {
	Endpoint string
	Err      error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("transmit to %s: %v", e.Endpoint, e.Err)
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}

// Transport delivers batches to a collector.
type Transport interface {
	Send(ctx context.Context, batch Batch) error
	Close() error
}

// TCPTransport sends batches over a length-prefixed binary stream: a
// 4-byte big-endian payload length followed by the gzip-compressed JSON
// encoding of the batch. The schema beyond the framing belongs to the
// collector.
//
// A circuit breaker guards the collector connection so that a dead
// collector fails sends fast instead of stalling the flusher on dial
// timeouts for every batch.
type TCPTransport struct {
	endpoint    string
	dialTimeout time.Duration
	breaker     *resilience.Breaker

	mu   sync.Mutex
	conn net.Conn
}

// TCPOption configures a TCPTransport.
type TCPOption func(*TCPTransport)

// WithDialTimeout overrides the default 3s dial timeout.
func WithDialTimeout(d time.Duration) TCPOption {
	return func(t *TCPTransport) { t.dialTimeout = d }
}

// NewTCPTransport creates a transport for the collector at endpoint
// (host:port). The connection is established lazily on first send and
// re-established after failures.
func NewTCPTransport(endpoint string, opts ...TCPOption) *TCPTransport {
	t := &TCPTransport{
		endpoint:    endpoint,
		dialTimeout: 3 * time.Second,
		breaker: resilience.New("collector", resilience.Settings{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send frames and writes one batch. Any failure returns a
// *TransmissionError and resets the connection so the next attempt
// redials.
func (t *TCPTransport) Send(ctx context.Context, batch Batch) error {
	frame, err := encodeFrame(batch)
	if err != nil {
		// Encoding failures are not transient; still reported through the
		// same type so the queue's drop accounting stays uniform.
		return &TransmissionError{Endpoint: t.endpoint, Err: err}
	}

	_, err = t.breaker.Execute(func() (interface{}, error) {
		return nil, t.write(ctx, frame)
	})
	if err != nil {
		return &TransmissionError{Endpoint: t.endpoint, Err: err}
	}
	return nil
}

func (t *TCPTransport) write(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		dialer := net.Dialer{Timeout: t.dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", t.endpoint)
		if err != nil {
			return err
		}
		t.conn = conn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.dialTimeout))
	}

	if _, err := t.conn.Write(frame); err != nil {
		t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

// Close tears down the collector connection.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// encodeFrame renders length prefix + gzip(JSON(batch)).
func encodeFrame(batch Batch) ([]byte, error) {
	payload, err := sonic.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 4)) // length prefix, filled below

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}

	frame := buf.Bytes()
	binary.BigEndian.PutUint32(frame[:4], uint32(len(frame)-4))
	return frame, nil
}

// DecodeFrame parses one frame produced by encodeFrame. Used by tests and
// by anything standing in for a collector.
func DecodeFrame(frame []byte) (Batch, error) {
	var batch Batch
	if len(frame) < 4 {
		return batch, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	n := binary.BigEndian.Uint32(frame[:4])
	if int(n) != len(frame)-4 {
		return batch, fmt.Errorf("frame length mismatch: prefix %d, payload %d", n, len(frame)-4)
	}

	r, err := gzip.NewReader(bytes.NewReader(frame[4:]))
	if err != nil {
		return batch, fmt.Errorf("decompress frame: %w", err)
	}
	defer r.Close()

	payload, err := io.ReadAll(r)
	if err != nil {
		return batch, fmt.Errorf("decompress frame: %w", err)
	}
	if err := sonic.Unmarshal(payload, &batch); err != nil {
		return batch, fmt.Errorf("decode batch: %w", err)
	}
	return batch, nil
}
