// Package reconcile applies parsed stream frames to the assistant message
// they target.
package reconcile

import (
	"encoding/json"
	"time"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	"github.com/zhouzirui/aura/backend/internal/protocol/sse"
)

// Drop reasons reported in Result.Dropped.
const (
	DropUnrecognized = "unrecognized"
	DropPayload      = "payload"
	DropNoTarget     = "no_target"
	DropFinalized    = "finalized"
)

// IgnoredTimestamp is reported in Result.Ignored when a meta frame carried a
// timestamp no known layout accepts.
const IgnoredTimestamp = "timestamp"

// timestampLayouts are tried in order for meta timestamps. Layouts without a
// zone read the value as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Result describes what Apply did with a frame.
type Result struct {
	Applied   bool
	TargetID  string
	Finalized bool
	Dropped   string
	// Ignored names a field of an applied frame that could not be used.
	Ignored string
}

// Apply mutates the target message of f inside conv. It never creates a
// message and never touches more than one.
func Apply(conv *chat.Conversation, f sse.Frame) Result {
	switch f.EventType {
	case chat.EventMeta:
		var payload chat.MetaPayload
		if !decode(f, &payload) {
			return Result{Dropped: DropPayload}
		}
		return applyMeta(conv, payload)

	case chat.EventBlock:
		var payload chat.BlockPayload
		if !decode(f, &payload) || payload.Type == "" {
			return Result{Dropped: DropPayload}
		}
		return mutate(conv, payload.MessageID, func(m *chat.Message) {
			m.Blocks = append(m.Blocks, payload.Block())
		})

	case chat.EventFollowups:
		var followups []string
		if !decode(f, &followups) {
			return Result{Dropped: DropPayload}
		}
		return mutate(conv, "", func(m *chat.Message) {
			m.SuggestedFollowups = followups
		})

	case chat.EventDone:
		res := mutate(conv, "", func(m *chat.Message) {
			m.Streaming = false
		})
		if res.Applied {
			res.Finalized = true
			if conv.ActiveStreamTargetID == res.TargetID {
				conv.ActiveStreamTargetID = ""
			}
		}
		return res
	}

	return Result{Dropped: DropUnrecognized}
}

func applyMeta(conv *chat.Conversation, payload chat.MetaPayload) Result {
	idx, reason := resolve(conv, payload.MessageID)
	if idx < 0 {
		return Result{Dropped: reason}
	}

	m := conv.Messages[idx].Clone()
	oldID := m.ID
	if payload.MessageID != "" && payload.MessageID != oldID && conv.IndexOf(payload.MessageID) < 0 {
		m.ID = payload.MessageID
	}
	res := Result{Applied: true}
	if payload.Timestamp != "" {
		if ts, ok := parseTimestamp(payload.Timestamp); ok {
			m.Timestamp = ts
		} else {
			res.Ignored = IgnoredTimestamp
		}
	}
	conv.Replace(idx, m)

	if conv.ActiveStreamTargetID == oldID {
		conv.ActiveStreamTargetID = m.ID
	}
	res.TargetID = m.ID
	return res
}

func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func mutate(conv *chat.Conversation, hint string, fn func(*chat.Message)) Result {
	idx, reason := resolve(conv, hint)
	if idx < 0 {
		return Result{Dropped: reason}
	}

	m := conv.Messages[idx].Clone()
	fn(&m)
	conv.Replace(idx, m)
	return Result{Applied: true, TargetID: m.ID}
}

// resolve picks the target message: an explicit message id first, then the
// conversation's stream handle, then the single streaming assistant message.
func resolve(conv *chat.Conversation, hint string) (int, string) {
	idx := -1
	if i := conv.IndexOf(hint); i >= 0 && conv.Messages[i].Role == chat.RoleAssistant {
		idx = i
	}
	if idx < 0 {
		idx = conv.IndexOf(conv.ActiveStreamTargetID)
	}
	if idx < 0 {
		idx = uniqueStreaming(conv)
	}
	if idx < 0 {
		return -1, DropNoTarget
	}
	if !conv.Messages[idx].Streaming {
		return -1, DropFinalized
	}
	return idx, ""
}

func uniqueStreaming(conv *chat.Conversation) int {
	found := -1
	for i, m := range conv.Messages {
		if m.Role != chat.RoleAssistant || !m.Streaming {
			continue
		}
		if found >= 0 {
			return -1
		}
		found = i
	}
	return found
}

func decode(f sse.Frame, v any) bool {
	if len(f.Data) == 0 {
		return false
	}
	return json.Unmarshal(f.Data, v) == nil
}
