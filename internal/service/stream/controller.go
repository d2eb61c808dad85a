// Package stream drives one assistant response from request to terminal state.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/metrics"
	"github.com/zhouzirui/aura/backend/internal/model/chat"
	"github.com/zhouzirui/aura/backend/internal/protocol/sse"
	"github.com/zhouzirui/aura/backend/internal/service/reconcile"
)

var (
	ErrSendInFlight      = errors.New("a message is already being sent")
	ErrEmptyMessage      = errors.New("message text is required")
	ErrStreamTruncated   = errors.New("stream ended before done frame")
	ErrAttachmentMissing = errors.New("attachment index out of range")
)

// State is the lifecycle position of a send.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateCancelled
}

// Transport opens the outbound request and returns the response body.
type Transport interface {
	Open(ctx context.Context, req chat.StreamRequest) (io.ReadCloser, error)
}

// Store is the part of the session store the controller drives.
type Store interface {
	StartNewMessage(ctx context.Context, text string, attachments []chat.Attachment) (chat.Message, chat.Message, error)
	ApplyFrame(ctx context.Context, f sse.Frame) reconcile.Result
	CloseStream(ctx context.Context) (chat.Message, bool)
	FailStream(ctx context.Context) (chat.Message, bool)
	NewConversation(ctx context.Context) error
	ClearConversation(ctx context.Context) error
	ActivateSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	Conversation() chat.Conversation
}

const defaultChunkSize = 4096

// Controller runs at most one send at a time against a store.
type Controller struct {
	store     Store
	transport Transport
	log       zerolog.Logger
	chunkSize int

	mu      sync.Mutex
	flight  *Flight
	pending []chat.Attachment
	last    State
}

// NewController wires a controller to its store and transport.
func NewController(store Store, transport Transport, logger zerolog.Logger) *Controller {
	return &Controller{
		store:     store,
		transport: transport,
		log:       logger.With().Str("component", "stream_controller").Logger(),
		chunkSize: defaultChunkSize,
		last:      StateIdle,
	}
}

// Flight is one in-progress send.
type Flight struct {
	UserMessage chat.Message
	Placeholder chat.Message

	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	mu    sync.Mutex
	state State
	err   error
}

// Done is closed once the flight reached a terminal state and released its
// cancellation handle.
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// State returns the current state.
func (f *Flight) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the transport error of an errored flight.
func (f *Flight) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Wait blocks until the flight finishes or ctx is done.
func (f *Flight) Wait(ctx context.Context) (State, error) {
	select {
	case <-f.done:
		return f.State(), nil
	case <-ctx.Done():
		return f.State(), ctx.Err()
	}
}

func (f *Flight) setState(s State, err error) {
	f.mu.Lock()
	f.state = s
	f.err = err
	f.mu.Unlock()
}

// Start creates the user message and the assistant placeholder, then streams
// the response in the background. Transport failures never come back as an
// error here; they end up in the conversation.
func (c *Controller) Start(ctx context.Context, text string) (*Flight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flight != nil {
		return nil, ErrSendInFlight
	}
	if strings.TrimSpace(text) == "" && len(c.pending) == 0 {
		return nil, ErrEmptyMessage
	}

	attachments := c.pending
	user, placeholder, err := c.store.StartNewMessage(ctx, text, attachments)
	if err != nil {
		return nil, fmt.Errorf("start message: %w", err)
	}
	c.pending = nil

	streamCtx, cancel := context.WithCancel(ctx)
	flight := &Flight{
		UserMessage: user,
		Placeholder: placeholder,
		cancel:      cancel,
		done:        make(chan struct{}),
		startedAt:   time.Now(),
		state:       StateSending,
	}
	c.flight = flight
	c.last = StateSending

	req := chat.StreamRequest{Message: text, Attachments: chat.AttachmentNames(attachments)}
	go c.run(streamCtx, flight, req)

	c.log.Info().
		Str("message", placeholder.ID).
		Int("attachments", len(attachments)).
		Msg("send started")
	return flight, nil
}

// Send is Start followed by waiting for the terminal state.
func (c *Controller) Send(ctx context.Context, text string) (State, error) {
	flight, err := c.Start(ctx, text)
	if err != nil {
		return StateIdle, err
	}
	<-flight.Done()
	return flight.State(), nil
}

// Cancel asks the in-flight send to stop. It reports whether there was one.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight == nil {
		return false
	}
	c.flight.cancel()
	return true
}

// InFlight reports whether a send is running.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight != nil
}

// State returns the state of the running send, or the terminal state of the
// last one.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight != nil {
		return c.flight.State()
	}
	return c.last
}

// NewConversation cancels any running send, then archives and resets the
// conversation. Pending attachments are discarded.
func (c *Controller) NewConversation(ctx context.Context) error {
	if err := c.cancelAndWait(ctx); err != nil {
		return err
	}
	c.clearAttachments()
	return c.store.NewConversation(ctx)
}

// ClearConversation cancels any running send, then clears the conversation.
func (c *Controller) ClearConversation(ctx context.Context) error {
	if err := c.cancelAndWait(ctx); err != nil {
		return err
	}
	return c.store.ClearConversation(ctx)
}

// ActivateSession cancels any running send, then switches to session id.
func (c *Controller) ActivateSession(ctx context.Context, id string) error {
	if err := c.cancelAndWait(ctx); err != nil {
		return err
	}
	c.clearAttachments()
	return c.store.ActivateSession(ctx, id)
}

// DeleteSession removes a session from the history. Deleting the session of
// the active conversation cancels any running send first.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	if id == c.store.Conversation().ID {
		if err := c.cancelAndWait(ctx); err != nil {
			return err
		}
	}
	return c.store.DeleteSession(ctx, id)
}

// Shutdown cancels any running send and waits until it has settled the
// conversation.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.cancelAndWait(ctx); err != nil {
		return fmt.Errorf("drain send: %w", err)
	}
	return nil
}

// AddAttachment queues file metadata for the next send.
func (c *Controller) AddAttachment(a chat.Attachment) {
	c.mu.Lock()
	c.pending = append(c.pending, a)
	c.mu.Unlock()
}

// RemoveAttachment drops the pending attachment at index.
func (c *Controller) RemoveAttachment(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.pending) {
		return ErrAttachmentMissing
	}
	next := make([]chat.Attachment, 0, len(c.pending)-1)
	next = append(next, c.pending[:index]...)
	c.pending = append(next, c.pending[index+1:]...)
	return nil
}

// Attachments lists the pending attachments.
func (c *Controller) Attachments() []chat.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Attachment{}, c.pending...)
}

func (c *Controller) clearAttachments() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

func (c *Controller) cancelAndWait(ctx context.Context) error {
	c.mu.Lock()
	flight := c.flight
	c.mu.Unlock()
	if flight == nil {
		return nil
	}

	flight.cancel()
	select {
	case <-flight.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context, flight *Flight, req chat.StreamRequest) {
	state, err := c.stream(ctx, flight, req)
	c.finish(ctx, flight, state, err)
}

// stream feeds the response body through the parser into the store until a
// done frame, a failure or cancellation.
func (c *Controller) stream(ctx context.Context, flight *Flight, req chat.StreamRequest) (State, error) {
	body, err := c.transport.Open(ctx, req)
	if err != nil {
		return classify(ctx, err)
	}
	defer body.Close()

	// Closing the body unblocks a pending Read once the send is cancelled.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	flight.setState(StateStreaming, nil)

	parser := sse.NewParser()
	buf := make([]byte, c.chunkSize)
	malformed := 0
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			frames := parser.Feed(buf[:n])
			if d := parser.Dropped(); d > malformed {
				metrics.RecordDroppedFrames("malformed", d-malformed)
				malformed = d
			}

			for _, f := range frames {
				if ctx.Err() != nil {
					return StateCancelled, nil
				}
				res := c.store.ApplyFrame(ctx, f)
				if !res.Applied {
					metrics.RecordDroppedFrames(res.Dropped, 1)
					c.log.Debug().Str("event", f.EventType).Str("reason", res.Dropped).Msg("frame dropped")
					continue
				}
				metrics.RecordFrame(f.EventType)
				if res.Ignored != "" {
					metrics.RecordIgnoredField(res.Ignored)
					c.log.Warn().Str("event", f.EventType).Str("field", res.Ignored).Msg("frame field ignored")
				}
				if res.Finalized {
					return StateCompleted, nil
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			if ctx.Err() != nil {
				return StateCancelled, nil
			}
			return StateErrored, ErrStreamTruncated
		}
		if readErr != nil {
			return classify(ctx, readErr)
		}
	}
}

// finish settles the conversation for the terminal state and releases the
// cancellation handle.
func (c *Controller) finish(ctx context.Context, flight *Flight, state State, err error) {
	settleCtx := context.WithoutCancel(ctx)

	switch state {
	case StateCancelled:
		c.store.CloseStream(settleCtx)
	case StateErrored:
		final, _ := c.store.FailStream(settleCtx)
		c.log.Warn().Err(err).Str("message", final.ID).Int("blocks", len(final.Blocks)).Msg("stream failed")
	}

	elapsed := time.Since(flight.startedAt)
	metrics.RecordStream(string(state), elapsed.Seconds())

	c.mu.Lock()
	flight.cancel()
	flight.setState(state, err)
	if c.flight == flight {
		c.flight = nil
	}
	c.last = state
	close(flight.done)
	c.mu.Unlock()

	c.log.Info().Str("state", string(state)).Dur("elapsed", elapsed).Msg("send finished")
}

func classify(ctx context.Context, err error) (State, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return StateCancelled, nil
	}
	return StateErrored, err
}
