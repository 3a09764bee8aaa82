// Package client is a Go client for the corkboard line protocol.
//
// A Client owns one connection. Requests are serialized, so a Client may be
// shared between goroutines, but each call waits for the previous reply.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/protocol"
)

// ServerError is an ERROR reply. The connection remains usable.
type ServerError struct {
	Code        string
	Description string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Description)
}

// Is matches a *board.Error or *ServerError carrying the same code, so
// errors.Is(err, board.ErrOverlap) works on client errors.
func (e *ServerError) Is(target error) bool {
	var be *board.Error
	if errors.As(target, &be) {
		return string(be.Code) == e.Code
	}
	var se *ServerError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// ErrInvalidRequest is returned, before anything is sent, for a request
// that cannot be encoded as a single protocol line.
var ErrInvalidRequest = errors.New("invalid request")

// Filter selects notes for Query. Zero-valued fields impose no constraint.
type Filter struct {
	Colour   string
	Contains *board.Pin
	RefersTo string
}

// Client is a connection to a corkboard server.
type Client struct {
	mu        sync.Mutex
	conn      net.Conn
	r         *bufio.Reader
	w         *bufio.Writer
	handshake protocol.Handshake
	closed    bool
}

// Dial connects to addr and reads the HELLO handshake. A missing or
// malformed handshake closes the connection and fails.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c, err := newClient(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func newClient(ctx context.Context, conn net.Conn) (*Client, error) {
	c := &Client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}

	stop := c.watch(ctx)
	line, err := protocol.ReadLine(c.r)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake: %w", err)
	}

	h, err := protocol.ParseHandshake(line)
	if err != nil {
		return nil, fmt.Errorf("invalid handshake: %w", err)
	}
	c.handshake = h
	return c, nil
}

// Handshake returns the board description received at connect time.
func (c *Client) Handshake() protocol.Handshake {
	return c.handshake
}

// Post stores a note and returns its id.
func (c *Client) Post(ctx context.Context, x, y int, colour, message string) (int, error) {
	resp, err := c.do(ctx, protocol.PostCommand{X: x, Y: y, Colour: colour, Message: message})
	if err != nil {
		return 0, err
	}
	ok, isNote := resp.(protocol.OKNote)
	if !isNote {
		return 0, unexpected(resp)
	}
	return ok.ID, nil
}

// Query returns the notes matching f in ascending id order.
func (c *Client) Query(ctx context.Context, f Filter) ([]protocol.NoteRecord, error) {
	resp, err := c.do(ctx, protocol.GetCommand{Colour: f.Colour, Contains: f.Contains, RefersTo: f.RefersTo})
	if err != nil {
		return nil, err
	}
	list, ok := resp.(protocol.NotesList)
	if !ok {
		return nil, unexpected(resp)
	}
	return list.Notes, nil
}

// Pins returns every pin on the board.
func (c *Client) Pins(ctx context.Context) ([]board.Pin, error) {
	resp, err := c.do(ctx, protocol.GetPinsCommand{})
	if err != nil {
		return nil, err
	}
	list, ok := resp.(protocol.PinsList)
	if !ok {
		return nil, unexpected(resp)
	}
	return list.Pins, nil
}

// Pin places a pin at (x, y).
func (c *Client) Pin(ctx context.Context, x, y int) error {
	return c.expectOK(ctx, protocol.PinCommand{X: x, Y: y})
}

// Unpin removes the pin at (x, y).
func (c *Client) Unpin(ctx context.Context, x, y int) error {
	return c.expectOK(ctx, protocol.UnpinCommand{X: x, Y: y})
}

// Shake removes every unpinned note.
func (c *Client) Shake(ctx context.Context) error {
	return c.expectOK(ctx, protocol.ShakeCommand{})
}

// Clear removes every note and pin.
func (c *Client) Clear(ctx context.Context) error {
	return c.expectOK(ctx, protocol.ClearCommand{})
}

// Disconnect sends DISCONNECT, waits for the OK, and closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.expectOK(ctx, protocol.DisconnectCommand{})
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Send writes a raw request line and reads its reply. The line is parsed
// locally only to learn the reply shape; lines that do not parse are still
// sent and answered with an ERROR by the server. ERROR replies are returned
// as *protocol.Error responses, not Go errors.
func (c *Client) Send(ctx context.Context, line string) (protocol.Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("%w: request must be a single line", ErrInvalidRequest)
	}

	cmd, err := protocol.Parse(line)
	if err != nil {
		cmd = rawCommand(line)
	}
	resp, err := c.roundTrip(ctx, line, cmd)
	if err != nil {
		return nil, err
	}
	if _, ok := cmd.(protocol.DisconnectCommand); ok {
		if _, isOK := resp.(protocol.OK); isOK {
			c.Close()
		}
	}
	return resp, nil
}

// Close closes the connection without sending DISCONNECT.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) expectOK(ctx context.Context, cmd protocol.Command) error {
	resp, err := c.do(ctx, cmd)
	if err != nil {
		return err
	}
	if _, ok := resp.(protocol.OK); !ok {
		return unexpected(resp)
	}
	return nil
}

// do performs one round trip and turns ERROR replies into *ServerError.
func (c *Client) do(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, cmd.String(), cmd)
	if err != nil {
		return nil, err
	}
	if e, ok := resp.(*protocol.Error); ok {
		return nil, &ServerError{Code: e.Code, Description: e.Description}
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, line string, cmd protocol.Command) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, net.ErrClosed
	}

	stop := c.watch(ctx)
	defer stop()

	// Any failure past this point may leave part of a request or reply on
	// the wire, so the connection cannot be reused.
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		c.abandon()
		return nil, c.ioError(ctx, "failed to send request", err)
	}
	if err := c.w.Flush(); err != nil {
		c.abandon()
		return nil, c.ioError(ctx, "failed to send request", err)
	}

	resp, err := protocol.ReadResponse(c.r, cmd)
	if err != nil {
		c.abandon()
		return nil, c.ioError(ctx, "failed to read response", err)
	}
	return resp, nil
}

// abandon closes the connection after a failed round trip. Caller must
// hold c.mu.
func (c *Client) abandon() {
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
}

// validate rejects commands whose fields would change the request line's
// framing or tokenization.
func validate(cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.PostCommand:
		if !isToken(c.Colour) {
			return fmt.Errorf("%w: colour %q must be a single word", ErrInvalidRequest, c.Colour)
		}
	case protocol.GetCommand:
		if c.Colour != "" && !isToken(c.Colour) {
			return fmt.Errorf("%w: colour filter %q must be a single word", ErrInvalidRequest, c.Colour)
		}
		if c.RefersTo != "" && !isToken(c.RefersTo) {
			return fmt.Errorf("%w: refersTo filter %q must be a single word", ErrInvalidRequest, c.RefersTo)
		}
	}
	if strings.ContainsAny(cmd.String(), "\r\n") {
		return fmt.Errorf("%w: request must be a single line", ErrInvalidRequest)
	}
	return nil
}

func isToken(s string) bool {
	return s != "" && strings.IndexFunc(s, unicode.IsSpace) < 0
}

// watch applies ctx's deadline to the connection and interrupts blocked I/O
// when ctx is cancelled. The returned func clears both.
func (c *Client) watch(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	}
	if ctx.Done() == nil {
		return func() { c.conn.SetDeadline(time.Time{}) }
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			c.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		c.conn.SetDeadline(time.Time{})
	}
}

func (c *Client) ioError(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", msg, ctxErr)
	}
	// The connection deadline can fire a moment before the context timer.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%s: %w", msg, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func unexpected(resp protocol.Response) error {
	return fmt.Errorf("%w: unexpected %T reply", protocol.ErrMalformedResponse, resp)
}

// rawCommand sends a line verbatim and expects a single-line reply.
type rawCommand string

func (r rawCommand) Keyword() string { return "" }
func (r rawCommand) String() string  { return string(r) }
