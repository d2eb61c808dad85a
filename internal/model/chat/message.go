package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Feedback is the thumbs up/down rating a user left on an assistant message.
type Feedback string

const (
	FeedbackNone Feedback = ""
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Valid reports whether f is one of the known feedback values.
func (f Feedback) Valid() bool {
	switch f {
	case FeedbackNone, FeedbackUp, FeedbackDown:
		return true
	}
	return false
}

// Attachment is the metadata of a file picked by the user. Only Name travels
// upstream; the full tuple stays on the stored user message.
type Attachment struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"type"`
}

// Message is a single turn of a conversation.
//
// User messages carry their content in Text, assistant messages in Blocks.
// On the wire both are serialized under "content".
type Message struct {
	ID                 string
	Role               Role
	Text               string
	Blocks             []ContentBlock
	Timestamp          time.Time
	Attachments        []Attachment
	SuggestedFollowups []string
	Feedback           Feedback
	Streaming          bool
}

type messageJSON struct {
	ID                 string          `json:"id"`
	Role               Role            `json:"role"`
	Content            json.RawMessage `json:"content"`
	Timestamp          time.Time       `json:"timestamp"`
	Attachments        []Attachment    `json:"attachments,omitempty"`
	SuggestedFollowups []string        `json:"suggestedFollowups,omitempty"`
	Feedback           Feedback        `json:"feedback,omitempty"`
	Streaming          bool            `json:"streaming,omitempty"`
}

// MarshalJSON encodes the content as a string for user messages and as a
// block array for assistant messages.
func (m Message) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.Role == RoleUser {
		content, err = json.Marshal(m.Text)
	} else {
		blocks := m.Blocks
		if blocks == nil {
			blocks = []ContentBlock{}
		}
		content, err = json.Marshal(blocks)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal message %s content: %w", m.ID, err)
	}

	return json.Marshal(messageJSON{
		ID:                 m.ID,
		Role:               m.Role,
		Content:            content,
		Timestamp:          m.Timestamp,
		Attachments:        m.Attachments,
		SuggestedFollowups: m.SuggestedFollowups,
		Feedback:           m.Feedback,
		Streaming:          m.Streaming,
	})
}

// UnmarshalJSON accepts either content shape regardless of role.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message{
		ID:                 raw.ID,
		Role:               raw.Role,
		Timestamp:          raw.Timestamp,
		Attachments:        raw.Attachments,
		SuggestedFollowups: raw.SuggestedFollowups,
		Feedback:           raw.Feedback,
		Streaming:          raw.Streaming,
	}

	content := bytes.TrimSpace(raw.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
	case content[0] == '"':
		if err := json.Unmarshal(content, &m.Text); err != nil {
			return fmt.Errorf("decode message %s text: %w", raw.ID, err)
		}
	default:
		if err := json.Unmarshal(content, &m.Blocks); err != nil {
			return fmt.Errorf("decode message %s blocks: %w", raw.ID, err)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (m Message) Clone() Message {
	out := m
	if m.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(m.Blocks))
		for i, b := range m.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.SuggestedFollowups != nil {
		out.SuggestedFollowups = append([]string(nil), m.SuggestedFollowups...)
	}
	return out
}

// AttachmentNames lists the names forwarded in the outbound request.
func AttachmentNames(attachments []Attachment) []string {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	return names
}

// CloneMessages deep-copies a message list.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}
