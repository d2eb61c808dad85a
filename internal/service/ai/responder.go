// Package ai produces assistant answers in the frame protocol.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	catalog "github.com/zhouzirui/aura/backend/internal/model/prompt"
)

// Emitter writes one frame to the client.
type Emitter interface {
	Emit(event string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, payload any) error

func (f EmitterFunc) Emit(event string, payload any) error { return f(event, payload) }

// Responder answers one chat request by emitting meta, blocks, followups
// and done. A returned error means the stream stopped without done.
type Responder interface {
	Name() string
	Respond(ctx context.Context, req chat.StreamRequest, emit Emitter) error
}

const maxFollowups = 3

func emitMeta(emit Emitter, id string, at time.Time) error {
	return emit.Emit(chat.EventMeta, chat.MetaPayload{
		MessageID: id,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
}

func emitBlock(emit Emitter, kind chat.BlockKind, title string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s block: %w", kind, err)
	}
	return emit.Emit(chat.EventBlock, chat.BlockPayload{Type: kind, Title: title, Data: raw})
}

func emitDone(emit Emitter) error {
	return emit.Emit(chat.EventDone, struct{}{})
}

// followupsFor suggests catalogue prompts other than the one just asked.
func followupsFor(prompts catalog.Store, message string) []string {
	out := make([]string, 0, maxFollowups)
	if prompts == nil {
		return out
	}
	asked := strings.TrimSpace(message)
	for _, p := range prompts.All() {
		if strings.EqualFold(p.Prompt, asked) {
			continue
		}
		out = append(out, p.Prompt)
		if len(out) == maxFollowups {
			break
		}
	}
	return out
}
