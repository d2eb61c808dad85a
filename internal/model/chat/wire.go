package chat

import "encoding/json"

// Event types of the assistant frame protocol.
const (
	EventMeta      = "meta"
	EventBlock     = "block"
	EventFollowups = "followups"
	EventDone      = "done"
)

// StreamRequest is the body of the outbound chat request.
type StreamRequest struct {
	Message     string   `json:"message"`
	Attachments []string `json:"attachments"`
}

// MetaPayload is the data of a meta frame.
type MetaPayload struct {
	MessageID string `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// BlockPayload is the data of a block frame.
type BlockPayload struct {
	Type      BlockKind       `json:"type"`
	Title     string          `json:"title,omitempty"`
	Data      json.RawMessage `json:"data"`
	MessageID string          `json:"message_id,omitempty"`
}

// Block drops the routing id and keeps the renderable part.
func (p BlockPayload) Block() ContentBlock {
	return ContentBlock{Type: p.Type, Title: p.Title, Data: p.Data}
}
