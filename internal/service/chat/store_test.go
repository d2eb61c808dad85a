package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	"github.com/zhouzirui/aura/backend/internal/protocol/sse"
	chatservice "github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/storage"
)

func newStore(t *testing.T, slots storage.Slots) *chatservice.Store {
	t.Helper()
	n := 0
	return chatservice.NewStore(slots, zerolog.Nop(), chatservice.Options{
		Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func blockFrame(text string) sse.Frame {
	data, _ := json.Marshal(map[string]string{"type": "text", "data": text})
	return sse.Frame{EventType: chat.EventBlock, Data: data}
}

func TestStartNewMessageCreatesPlaceholder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())

	user, placeholder, err := store.StartNewMessage(ctx, "hello", []chat.Attachment{{Name: "trace.json", Size: 10, MimeType: "application/json"}})
	require.NoError(t, err)

	assert.Equal(t, chat.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Text)
	require.Len(t, user.Attachments, 1)
	assert.Equal(t, chat.RoleAssistant, placeholder.Role)
	assert.True(t, placeholder.Streaming)
	assert.Empty(t, placeholder.Blocks)

	conv := store.Conversation()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, placeholder.ID, conv.ActiveStreamTargetID)
	assert.True(t, store.Streaming())
}

func TestStartNewMessageRejectsSecondPlaceholder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())

	_, _, err := store.StartNewMessage(ctx, "first", nil)
	require.NoError(t, err)

	_, _, err = store.StartNewMessage(ctx, "second", nil)
	assert.ErrorIs(t, err, chatservice.ErrStreamInFlight)
	assert.Len(t, store.Conversation().Messages, 2)
}

func TestApplyFrameAndClose(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, placeholder, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)

	res := store.ApplyFrame(ctx, blockFrame("Hi there"))
	require.True(t, res.Applied)
	assert.Equal(t, placeholder.ID, res.TargetID)

	res = store.ApplyFrame(ctx, sse.Frame{EventType: chat.EventDone})
	assert.True(t, res.Finalized)
	assert.False(t, store.Streaming())

	final := store.Conversation().Messages[1]
	assert.False(t, final.Streaming)
	require.Len(t, final.Blocks, 1)
	assert.JSONEq(t, `"Hi there"`, string(final.Blocks[0].Data))
}

func TestFailStreamWithContentKeepsPartialAnswer(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, placeholder, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)
	store.ApplyFrame(ctx, blockFrame("partial"))

	final, ok := store.FailStream(ctx)
	require.True(t, ok)

	assert.Equal(t, placeholder.ID, final.ID)
	assert.False(t, final.Streaming)
	require.Len(t, final.Blocks, 1)
	assert.JSONEq(t, `"partial"`, string(final.Blocks[0].Data))
}

func TestFailStreamWithoutContentReplacesPlaceholder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, placeholder, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)

	final, ok := store.FailStream(ctx)
	require.True(t, ok)

	assert.NotEqual(t, placeholder.ID, final.ID)
	assert.False(t, final.Streaming)
	require.Len(t, final.Blocks, 1)
	assert.JSONEq(t, fmt.Sprintf("%q", chatservice.FallbackText), string(final.Blocks[0].Data))

	conv := store.Conversation()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, -1, conv.IndexOf(placeholder.ID))
	assert.Empty(t, conv.ActiveStreamTargetID)
}

func TestCloseStreamWithoutTarget(t *testing.T) {
	store := newStore(t, storage.NewMemory())

	_, ok := store.CloseStream(context.Background())
	assert.False(t, ok)
}

func TestHistoryIsBoundedFIFO(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())

	var ids []string
	for i := 0; i < 21; i++ {
		ids = append(ids, store.Conversation().ID)
		_, _, err := store.StartNewMessage(ctx, fmt.Sprintf("question %d", i), nil)
		require.NoError(t, err)
		store.CloseStream(ctx)
		require.NoError(t, store.NewConversation(ctx))
	}

	sessions := store.Sessions()
	require.Len(t, sessions, 20)
	assert.Equal(t, ids[1], sessions[0].ID)
	assert.Equal(t, ids[20], sessions[19].ID)

	active := 0
	for _, s := range sessions {
		if s.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestArchiveUpsertsByConversationID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, _, err := store.StartNewMessage(ctx, "only once", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)

	require.NoError(t, store.ArchiveCurrent(ctx))
	require.NoError(t, store.ArchiveCurrent(ctx))

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "only once", sessions[0].Title)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.True(t, sessions[0].Active)
}

func TestArchiveSkipsEmptyConversation(t *testing.T) {
	store := newStore(t, storage.NewMemory())

	require.NoError(t, store.ArchiveCurrent(context.Background()))
	assert.Empty(t, store.Sessions())
}

func TestActivateSessionSwapsConversation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())

	_, _, err := store.StartNewMessage(ctx, "first conversation", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)
	firstID := store.Conversation().ID
	require.NoError(t, store.NewConversation(ctx))

	_, _, err = store.StartNewMessage(ctx, "second conversation", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)
	secondID := store.Conversation().ID

	require.NoError(t, store.ActivateSession(ctx, firstID))

	conv := store.Conversation()
	assert.Equal(t, firstID, conv.ID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "first conversation", conv.Messages[0].Text)

	for _, s := range store.Sessions() {
		assert.Equal(t, s.ID == firstID, s.Active, "session %s", s.ID)
		if s.ID == secondID {
			assert.Equal(t, "second conversation", s.Title)
		}
	}
}

func TestActivateUnknownSession(t *testing.T) {
	store := newStore(t, storage.NewMemory())

	err := store.ActivateSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}

func TestOperationsRejectedWhileStreaming(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, _, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, store.NewConversation(ctx), chatservice.ErrStreamInFlight)
	assert.ErrorIs(t, store.ClearConversation(ctx), chatservice.ErrStreamInFlight)
	assert.ErrorIs(t, store.ActivateSession(ctx, "x"), chatservice.ErrStreamInFlight)
}

func TestClearConversationRemovesSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, _, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)
	id := store.Conversation().ID
	require.Len(t, store.Sessions(), 1)

	require.NoError(t, store.ClearConversation(ctx))

	conv := store.Conversation()
	assert.Equal(t, id, conv.ID)
	assert.Empty(t, conv.Messages)
	assert.Empty(t, store.Sessions())
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, _, err := store.StartNewMessage(ctx, "old", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)
	oldID := store.Conversation().ID
	require.NoError(t, store.NewConversation(ctx))

	require.NoError(t, store.DeleteSession(ctx, oldID))
	assert.Empty(t, store.Sessions())
	assert.ErrorIs(t, store.DeleteSession(ctx, oldID), chatservice.ErrSessionNotFound)
}

func activeIDs(sessions []chat.Session) []string {
	var ids []string
	for _, sess := range sessions {
		if sess.Active {
			ids = append(ids, sess.ID)
		}
	}
	return ids
}

func archiveConversation(t *testing.T, store *chatservice.Store, text string) string {
	t.Helper()
	ctx := context.Background()
	_, _, err := store.StartNewMessage(ctx, text, nil)
	require.NoError(t, err)
	store.CloseStream(ctx)
	id := store.Conversation().ID
	require.NoError(t, store.NewConversation(ctx))
	return id
}

func TestClearConversationKeepsOneActiveSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	archiveConversation(t, store, "first")
	second := archiveConversation(t, store, "second")
	_, _, err := store.StartNewMessage(ctx, "third", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)

	require.NoError(t, store.ClearConversation(ctx))

	require.Len(t, store.Sessions(), 2)
	assert.Equal(t, []string{second}, activeIDs(store.Sessions()))
}

func TestDeleteActiveSessionKeepsOneActiveSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	first := archiveConversation(t, store, "first")
	_, _, err := store.StartNewMessage(ctx, "second", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)

	require.NoError(t, store.DeleteSession(ctx, store.Conversation().ID))

	assert.Empty(t, store.Conversation().Messages)
	assert.Equal(t, []string{first}, activeIDs(store.Sessions()))
}

func TestSetFeedbackToggles(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())
	_, placeholder, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)

	m, err := store.SetFeedback(ctx, placeholder.ID, chat.FeedbackUp)
	require.NoError(t, err)
	assert.Equal(t, chat.FeedbackUp, m.Feedback)

	m, err = store.SetFeedback(ctx, placeholder.ID, chat.FeedbackDown)
	require.NoError(t, err)
	assert.Equal(t, chat.FeedbackDown, m.Feedback)

	m, err = store.SetFeedback(ctx, placeholder.ID, chat.FeedbackDown)
	require.NoError(t, err)
	assert.Equal(t, chat.FeedbackNone, m.Feedback)

	_, err = store.SetFeedback(ctx, "missing", chat.FeedbackUp)
	assert.ErrorIs(t, err, chatservice.ErrMessageNotFound)
	_, err = store.SetFeedback(ctx, placeholder.ID, chat.Feedback("meh"))
	assert.ErrorIs(t, err, chatservice.ErrInvalidFeedback)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemory()
	store := newStore(t, slots)

	_, _, err := store.StartNewMessage(ctx, "persist me", nil)
	require.NoError(t, err)

	raw, err := slots.Load(ctx, storage.ConversationSlot)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"streaming":true`)

	store.ApplyFrame(ctx, blockFrame("answer"))
	store.ApplyFrame(ctx, sse.Frame{EventType: chat.EventDone})
	id := store.Conversation().ID

	restored := newStore(t, slots)
	require.NoError(t, restored.Load(ctx))

	conv := restored.Conversation()
	assert.Equal(t, id, conv.ID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "persist me", conv.Messages[0].Text)
	require.Len(t, conv.Messages[1].Blocks, 1)

	sessions := restored.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "persist me", sessions[0].Title)
}

func TestClearDeletesConversationSlot(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemory()
	store := newStore(t, slots)
	_, _, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)
	store.CloseStream(ctx)

	require.NoError(t, store.ClearConversation(ctx))

	_, err = slots.Load(ctx, storage.ConversationSlot)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, storage.NewMemory())

	var seen []int
	unsubscribe := store.Subscribe(func(c chat.Conversation) {
		seen = append(seen, len(c.Messages))
	})

	_, _, err := store.StartNewMessage(ctx, "hello", nil)
	require.NoError(t, err)
	unsubscribe()
	store.CloseStream(ctx)

	assert.Equal(t, []int{2}, seen)
}
