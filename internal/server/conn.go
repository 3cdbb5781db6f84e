package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/services/session"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Buffer size for outgoing frames
	sendBufferSize = 256
)

// ErrSendBufferFull is returned when a slow client falls too far behind.
// The connection is dropped when this happens.
var ErrSendBufferFull = errors.New("send buffer full")

// Conn is one client transport with a buffered outbound queue drained by a
// writer goroutine
type Conn struct {
	id        string
	netConn   net.Conn
	send      chan []byte
	writeWait time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool

	writerDone chan struct{}
}

func newConn(id string, nc net.Conn, bufferSize int, writeTimeout time.Duration, logger *slog.Logger) *Conn {
	if bufferSize <= 0 {
		bufferSize = sendBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = writeWait
	}
	return &Conn{
		id:         id,
		netConn:    nc,
		send:       make(chan []byte, bufferSize),
		writeWait:  writeTimeout,
		logger:     logger.With(slog.String("conn_id", id)),
		writerDone: make(chan struct{}),
	}
}

// ID identifies the connection in logs
func (c *Conn) ID() string {
	return c.id
}

// Send queues msg for the writer. It never blocks: when the buffer is full
// the connection is closed and ErrSendBufferFull returned.
func (c *Conn) Send(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return session.ErrConnClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.closeLocked()
		_ = c.netConn.Close()
		return ErrSendBufferFull
	}
}

// Close stops accepting messages. Frames already queued are still flushed
// before the transport is closed.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Closed reports whether Close has been called
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed once the writer has exited and the transport is closed
func (c *Conn) Done() <-chan struct{} {
	return c.writerDone
}

// writePump drains the send queue onto the transport
func (c *Conn) writePump() {
	defer close(c.writerDone)
	defer c.netConn.Close()

	failed := false
	for payload := range c.send {
		if failed {
			continue
		}
		_ = c.netConn.SetWriteDeadline(time.Now().Add(c.writeWait))
		if err := protocol.WriteFrame(c.netConn, payload); err != nil {
			c.logger.Debug("write failed", slog.String("error", err.Error()))
			failed = true
			// Unblock the reader so the connection gets torn down
			_ = c.netConn.Close()
		}
	}
}
