package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/storage"
)

func TestLivePushesSnapshots(t *testing.T) {
	store := chatservice.NewStore(storage.NewMemory(), zerolog.Nop(), chatservice.Options{})
	r := chi.NewRouter()
	New(store, zerolog.Nop()).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/aura/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first outgoingMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot err: %v", err)
	}
	if first.Type != "conversation" || len(first.Data.Messages) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	if _, _, err := store.StartNewMessage(context.Background(), "hello", nil); err != nil {
		t.Fatalf("StartNewMessage err: %v", err)
	}

	var next outgoingMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update err: %v", err)
	}
	if len(next.Data.Messages) != 2 || !next.Data.Streaming {
		t.Fatalf("unexpected update: %+v", next.Data)
	}
	if next.Data.ID != store.Conversation().ID {
		t.Fatalf("expected conversation id %s, got %s", store.Conversation().ID, next.Data.ID)
	}
}

type staticSource struct {
	conv chat.Conversation
}

func (s staticSource) Conversation() chat.Conversation { return s.conv }

func (s staticSource) Subscribe(func(chat.Conversation)) func() { return func() {} }

func TestLiveClosesConnectionWhenWriteFails(t *testing.T) {
	// A block whose data is not valid JSON makes every snapshot write fail.
	source := staticSource{conv: chat.Conversation{
		ID: "conv-1",
		Messages: []chat.Message{{
			ID:     "a1",
			Role:   chat.RoleAssistant,
			Blocks: []chat.ContentBlock{{Type: chat.BlockText, Data: json.RawMessage("{broken")}},
		}},
	}}
	r := chi.NewRouter()
	New(source, zerolog.Nop()).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/aura/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("connection stayed open after a failed write: %v", err)
		}
		return
	}
}
