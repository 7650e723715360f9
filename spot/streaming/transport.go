package streaming

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types used by the transport.
type MessageType int

// Values for MessageType
const (
	// Text message
	Text MessageType = 1
	// Binary message
	Binary MessageType = 2
)

// Interface for the low-level websocket transport used by the streaming client.
//
// The interface decouples the client from the underlying websocket framework: the client only
// needs to dial, read and write framed messages and close the connection. A ready-to-use
// implementation backed by gorilla/websocket is provided (cf. GorillaTransport).
//
// The streaming client guarantees a single goroutine uses the transport for writes and a single
// goroutine uses it for reads. Implementations do not need to support concurrent writers.
type Transport interface {
	// Open a connection to the provided target. Dial must not be called on an already connected
	// transport. The provided context cancels the connection attempt.
	Dial(ctx context.Context, target url.URL) error
	// Read the next message from the server. The call blocks until a message is received or the
	// connection fails. A read in progress is interrupted by closing the connection.
	Read(ctx context.Context) (MessageType, []byte, error)
	// Write a single message to the server.
	Write(ctx context.Context, msgType MessageType, msg []byte) error
	// Perform the close handshake when possible and release the underlying connection. Close
	// can be called at any time, including to interrupt a blocked Read.
	Close(ctx context.Context, code int, reason string) error
}

// Transport implementation backed by gorilla/websocket.
type GorillaTransport struct {
	// Dialer used to open connections. Defaults to websocket.DefaultDialer.
	dialer *websocket.Dialer
	// Optional headers provided with the opening handshake.
	headers http.Header
	// Underlying connection. Nil when disconnected.
	conn *websocket.Conn
	// Mutex which protects conn against concurrent Dial/Close
	mu sync.Mutex
}

// Factory which creates a new, disconnected GorillaTransport.
//
// A nil dialer defaults to websocket.DefaultDialer. Headers are optional and are sent with the
// opening handshake.
func NewGorillaTransport(dialer *websocket.Dialer, headers http.Header) *GorillaTransport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &GorillaTransport{
		dialer:  dialer,
		headers: headers,
	}
}

// Open a connection to the provided target.
func (t *GorillaTransport) Dial(ctx context.Context, target url.URL) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return fmt.Errorf("transport is already connected")
	}
	conn, resp, err := t.dialer.DialContext(ctx, target.String(), t.headers)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", target.String(), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.conn = conn
	return nil
}

// Read the next message from the server. The call blocks until a message is received, the
// connection fails or the connection is closed.
func (t *GorillaTransport) Read(ctx context.Context) (MessageType, []byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, nil, fmt.Errorf("transport is not connected")
	}
	select {
	case <-ctx.Done():
		return 0, nil, fmt.Errorf("read aborted: %w", ctx.Err())
	default:
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read message: %w", err)
		}
		return MessageType(msgType), msg, nil
	}
}

// Write a single message to the server.
func (t *GorillaTransport) Write(ctx context.Context, msgType MessageType, msg []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport is not connected")
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("write aborted: %w", ctx.Err())
	default:
		err := conn.WriteMessage(int(msgType), msg)
		if err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	}
}

// Perform the close handshake on a best effort basis and release the underlying connection.
// Closing the connection interrupts a blocked Read.
func (t *GorillaTransport) Close(ctx context.Context, code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	// Best effort close message: the connection is released regardless of the outcome
	deadline := time.Now().Add(time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
