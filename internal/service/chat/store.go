package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/metrics"
	"github.com/zhouzirui/aura/backend/internal/model/chat"
	"github.com/zhouzirui/aura/backend/internal/protocol/sse"
	"github.com/zhouzirui/aura/backend/internal/service/reconcile"
	"github.com/zhouzirui/aura/backend/internal/storage"
)

var (
	ErrStreamInFlight  = errors.New("a response is still streaming")
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidFeedback = errors.New("invalid feedback value")
)

// FallbackText replaces an assistant answer that failed before any content.
const FallbackText = "I encountered an error processing your request. Please try again."

const (
	DefaultMaxMessages = 50
	DefaultMaxSessions = 20
)

// Options tunes the store. Zero values fall back to the defaults.
type Options struct {
	MaxMessages int
	MaxSessions int
	Now         func() time.Time
	NewID       func() string
}

// Store owns the active conversation, the session history and their
// persistence. All operations are serialized.
type Store struct {
	mu       sync.Mutex
	slots    storage.Slots
	log      zerolog.Logger
	opts     Options
	conv     chat.Conversation
	sessions []chat.Session

	subMu     sync.RWMutex
	subs      map[int]func(chat.Conversation)
	nextSubID int
}

// NewStore builds a store with an empty conversation. Call Load to restore
// persisted state.
func NewStore(slots storage.Slots, logger zerolog.Logger, opts Options) *Store {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Store{
		slots: slots,
		log:   logger.With().Str("component", "chat_store").Logger(),
		opts:  opts,
		conv:  chat.Conversation{ID: opts.NewID()},
		subs:  make(map[int]func(chat.Conversation)),
	}
}

type conversationRecord struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
}

// Load restores the conversation and session history from the slots.
// Missing slots leave the defaults in place.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.slots.Load(ctx, storage.ConversationSlot); err == nil {
		var rec conversationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", storage.ConversationSlot, err)
		}
		if rec.ID != "" {
			s.conv.ID = rec.ID
		}
		s.conv.Messages = settled(rec.Messages)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load %s: %w", storage.ConversationSlot, err)
	}

	if raw, err := s.slots.Load(ctx, storage.SessionsSlot); err == nil {
		var sessions []chat.Session
		if err := json.Unmarshal(raw, &sessions); err != nil {
			return fmt.Errorf("decode %s: %w", storage.SessionsSlot, err)
		}
		s.sessions = s.trim(sessions)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load %s: %w", storage.SessionsSlot, err)
	}

	s.log.Info().
		Str("conversation", s.conv.ID).
		Int("messages", len(s.conv.Messages)).
		Int("sessions", len(s.sessions)).
		Msg("restored chat state")
	return nil
}

// Conversation returns a snapshot of the active conversation.
func (s *Store) Conversation() chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Clone()
}

// Sessions returns a snapshot of the session history, oldest first.
func (s *Store) Sessions() []chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Streaming reports whether the active conversation has a stream target.
func (s *Store) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.ActiveStreamTargetID != ""
}

// StartNewMessage appends the user message and an empty streaming assistant
// placeholder, and makes the placeholder the stream target.
func (s *Store) StartNewMessage(ctx context.Context, text string, attachments []chat.Attachment) (chat.Message, chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv.ActiveStreamTargetID != "" {
		return chat.Message{}, chat.Message{}, ErrStreamInFlight
	}

	now := s.opts.Now()
	user := chat.Message{
		ID:        s.opts.NewID(),
		Role:      chat.RoleUser,
		Text:      text,
		Timestamp: now,
	}
	if len(attachments) > 0 {
		user.Attachments = append([]chat.Attachment(nil), attachments...)
	}
	placeholder := chat.Message{
		ID:        s.opts.NewID(),
		Role:      chat.RoleAssistant,
		Blocks:    []chat.ContentBlock{},
		Timestamp: now,
		Streaming: true,
	}

	s.conv.Append(user, placeholder)
	s.conv.ActiveStreamTargetID = placeholder.ID
	s.commit(ctx)

	return user.Clone(), placeholder.Clone(), nil
}

// ApplyFrame hands a frame to the reconciliation engine.
func (s *Store) ApplyFrame(ctx context.Context, f sse.Frame) reconcile.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := reconcile.Apply(&s.conv, f)
	if res.Applied {
		s.commit(ctx)
	}
	return res
}

// CloseStream finalizes the stream target as is. It reports the final
// message and whether a target existed.
func (s *Store) CloseStream(ctx context.Context) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.conv.IndexOf(s.conv.ActiveStreamTargetID)
	s.conv.ActiveStreamTargetID = ""
	if idx < 0 {
		return chat.Message{}, false
	}

	m := s.conv.Messages[idx].Clone()
	m.Streaming = false
	s.conv.Replace(idx, m)
	s.commit(ctx)
	return m.Clone(), true
}

// FailStream finalizes the stream target after a transport failure. A target
// without content is replaced by a fallback message with a new id; otherwise
// the partial answer is kept.
func (s *Store) FailStream(ctx context.Context) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.conv.IndexOf(s.conv.ActiveStreamTargetID)
	s.conv.ActiveStreamTargetID = ""
	if idx < 0 {
		return chat.Message{}, false
	}

	m := s.conv.Messages[idx].Clone()
	if len(m.Blocks) == 0 {
		m = chat.Message{
			ID:        s.opts.NewID(),
			Role:      chat.RoleAssistant,
			Blocks:    []chat.ContentBlock{chat.TextBlock(FallbackText)},
			Timestamp: s.opts.Now(),
		}
	} else {
		m.Streaming = false
	}
	s.conv.Replace(idx, m)
	s.commit(ctx)
	return m.Clone(), true
}

// ArchiveCurrent stores a snapshot of the active conversation in the history.
func (s *Store) ArchiveCurrent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.archive()
	s.persistSessions(ctx)
	return nil
}

// NewConversation archives the current conversation and starts an empty one
// with a fresh id.
func (s *Store) NewConversation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv.ActiveStreamTargetID != "" {
		return ErrStreamInFlight
	}

	s.archive()
	s.conv = chat.Conversation{ID: s.opts.NewID()}
	s.commit(ctx)

	s.log.Info().Str("conversation", s.conv.ID).Msg("started new conversation")
	return nil
}

// ClearConversation empties the active conversation and drops its session
// from the history without archiving it.
func (s *Store) ClearConversation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv.ActiveStreamTargetID != "" {
		return ErrStreamInFlight
	}

	s.conv.Messages = nil
	s.sessions = keepOneActive(removeSession(s.sessions, s.conv.ID))
	s.commit(ctx)

	s.log.Info().Str("conversation", s.conv.ID).Msg("cleared conversation")
	return nil
}

// ActivateSession archives the current conversation and replaces it with the
// stored messages of the selected session.
func (s *Store) ActivateSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv.ActiveStreamTargetID != "" {
		return ErrStreamInFlight
	}

	s.archive()
	idx := indexOfSession(s.sessions, id)
	if idx < 0 {
		s.persistSessions(ctx)
		return ErrSessionNotFound
	}

	s.conv = chat.Conversation{
		ID:       id,
		Messages: chat.CloneMessages(s.sessions[idx].Messages),
	}
	s.commit(ctx)

	s.log.Info().Str("conversation", id).Int("messages", len(s.conv.Messages)).Msg("activated session")
	return nil
}

// DeleteSession removes a session from the history. Deleting the session of
// the active conversation also clears it.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOfSession(s.sessions, id) < 0 {
		return ErrSessionNotFound
	}
	if id == s.conv.ID {
		if s.conv.ActiveStreamTargetID != "" {
			return ErrStreamInFlight
		}
		s.conv.Messages = nil
	}

	s.sessions = keepOneActive(removeSession(s.sessions, id))
	s.commit(ctx)
	return nil
}

// SetFeedback toggles the feedback of a message: setting the value it
// already has clears it.
func (s *Store) SetFeedback(ctx context.Context, messageID string, value chat.Feedback) (chat.Message, error) {
	if !value.Valid() {
		return chat.Message{}, ErrInvalidFeedback
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated chat.Message
	ok := s.conv.Update(messageID, func(m *chat.Message) {
		if m.Feedback == value {
			m.Feedback = chat.FeedbackNone
		} else {
			m.Feedback = value
		}
		updated = *m
	})
	if !ok {
		return chat.Message{}, ErrMessageNotFound
	}

	s.commit(ctx)
	return updated.Clone(), nil
}

// Subscribe registers fn to receive a conversation snapshot after every
// committed change. The returned func unregisters it. fn runs while the
// store is locked and must not call back into it.
func (s *Store) Subscribe(fn func(chat.Conversation)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// archive upserts the snapshot of the active conversation at the end of the
// history. Callers hold s.mu.
func (s *Store) archive() {
	if s.conv.Empty() {
		return
	}
	snapshot := chat.FoldSession(s.conv, s.opts.MaxMessages, s.opts.Now())
	next := removeSession(s.sessions, snapshot.ID)
	next = append(next, snapshot)
	s.sessions = s.trim(markActive(next, snapshot.ID))
}

// syncActive refreshes the history entry mirroring the active conversation.
// Callers hold s.mu.
func (s *Store) syncActive() {
	if s.conv.Empty() {
		return
	}
	snapshot := chat.FoldSession(s.conv, s.opts.MaxMessages, s.opts.Now())

	next := make([]chat.Session, len(s.sessions), len(s.sessions)+1)
	copy(next, s.sessions)
	if idx := indexOfSession(next, snapshot.ID); idx >= 0 {
		snapshot.CreatedAt = next[idx].CreatedAt
		next[idx] = snapshot
	} else {
		next = append(next, snapshot)
	}
	s.sessions = s.trim(markActive(next, snapshot.ID))
}

// commit syncs the history, writes both slots and notifies subscribers.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context) {
	s.syncActive()
	s.persistConversation(ctx)
	s.persistSessions(ctx)
	s.notify()
}

func (s *Store) persistConversation(ctx context.Context) {
	if s.conv.Empty() {
		if err := s.slots.Delete(ctx, storage.ConversationSlot); err != nil {
			s.persistFailed(storage.ConversationSlot, err)
		}
		return
	}

	rec := conversationRecord{ID: s.conv.ID, Messages: s.conv.Persistable(s.opts.MaxMessages)}
	s.save(ctx, storage.ConversationSlot, rec)
}

func (s *Store) persistSessions(ctx context.Context) {
	sessions := s.sessions
	if sessions == nil {
		sessions = []chat.Session{}
	}
	s.save(ctx, storage.SessionsSlot, sessions)
}

func (s *Store) save(ctx context.Context, slot string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.persistFailed(slot, err)
		return
	}
	if err := s.slots.Save(ctx, slot, raw); err != nil {
		s.persistFailed(slot, err)
	}
}

func (s *Store) persistFailed(slot string, err error) {
	metrics.RecordPersistError(slot)
	s.log.Warn().Err(err).Str("slot", slot).Msg("failed to persist chat state")
}

func (s *Store) notify() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.conv.Clone()
	for _, fn := range s.subs {
		fn(snapshot)
	}
}

func (s *Store) trim(sessions []chat.Session) []chat.Session {
	if len(sessions) > s.opts.MaxSessions {
		sessions = sessions[len(sessions)-s.opts.MaxSessions:]
	}
	return sessions
}

func markActive(sessions []chat.Session, id string) []chat.Session {
	for i := range sessions {
		sessions[i].Active = sessions[i].ID == id
	}
	return sessions
}

// keepOneActive marks the newest session active when removing an entry left
// a non-empty history without one.
func keepOneActive(sessions []chat.Session) []chat.Session {
	if len(sessions) == 0 {
		return sessions
	}
	for _, sess := range sessions {
		if sess.Active {
			return sessions
		}
	}
	return markActive(sessions, sessions[len(sessions)-1].ID)
}

func indexOfSession(sessions []chat.Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func removeSession(sessions []chat.Session, id string) []chat.Session {
	out := make([]chat.Session, 0, len(sessions)+1)
	for _, sess := range sessions {
		if sess.ID != id {
			out = append(out, sess)
		}
	}
	return out
}

func settled(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if !m.Streaming {
			out = append(out, m)
		}
	}
	return out
}
