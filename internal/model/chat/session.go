package chat

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultTitle names a session that has no user message yet.
	DefaultTitle = "New Chat"

	titleMaxRunes = 50
	titleCutRunes = 47
	titleEllipsis = "..."
)

// Session is an archived snapshot of a conversation.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
	Messages     []Message `json:"messages"`
	Active       bool      `json:"active"`
}

// DeriveTitle returns the text of the first user message, cut to 47
// characters plus an ellipsis when it is longer than 50.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		if utf8.RuneCountInString(m.Text) <= titleMaxRunes {
			return m.Text
		}
		return string([]rune(m.Text)[:titleCutRunes]) + titleEllipsis
	}
	return DefaultTitle
}

// FoldSession derives the session snapshot of a conversation. now is used as
// the creation time when the conversation has no messages.
func FoldSession(conv Conversation, limit int, now time.Time) Session {
	createdAt := now
	if len(conv.Messages) > 0 && !conv.Messages[0].Timestamp.IsZero() {
		createdAt = conv.Messages[0].Timestamp
	}

	return Session{
		ID:           conv.ID,
		Title:        DeriveTitle(conv.Messages),
		CreatedAt:    createdAt,
		MessageCount: len(conv.Messages),
		Messages:     conv.Persistable(limit),
		Active:       true,
	}
}

// Clone deep-copies the session.
func (s Session) Clone() Session {
	s.Messages = CloneMessages(s.Messages)
	return s
}
