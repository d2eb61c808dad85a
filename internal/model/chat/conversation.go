package chat

// Conversation is the live message sequence of the current chat session.
//
// Messages is treated as immutable: every update installs a fresh slice so a
// snapshot handed out earlier never observes later mutations.
type Conversation struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`

	// ActiveStreamTargetID names the assistant message the in-flight stream
	// writes to. Empty when no stream is running.
	ActiveStreamTargetID string `json:"-"`
}

// IndexOf returns the position of the message with the given id, or -1.
func (c *Conversation) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Append adds messages at the end.
func (c *Conversation) Append(messages ...Message) {
	next := make([]Message, 0, len(c.Messages)+len(messages))
	next = append(next, c.Messages...)
	next = append(next, messages...)
	c.Messages = next
}

// Replace swaps the message at idx.
func (c *Conversation) Replace(idx int, m Message) {
	next := make([]Message, len(c.Messages))
	copy(next, c.Messages)
	next[idx] = m
	c.Messages = next
}

// Update applies fn to a copy of the message with the given id and stores the
// result. It reports whether the message existed.
func (c *Conversation) Update(id string, fn func(*Message)) bool {
	idx := c.IndexOf(id)
	if idx < 0 {
		return false
	}
	m := c.Messages[idx].Clone()
	fn(&m)
	c.Replace(idx, m)
	return true
}

// Persistable returns the most recent non-streaming messages, at most limit.
func (c *Conversation) Persistable(limit int) []Message {
	settled := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !m.Streaming {
			settled = append(settled, m)
		}
	}
	if limit > 0 && len(settled) > limit {
		settled = settled[len(settled)-limit:]
	}
	return CloneMessages(settled)
}

// Empty reports whether the conversation has no messages.
func (c Conversation) Empty() bool {
	return len(c.Messages) == 0
}

// Clone deep-copies the conversation.
func (c Conversation) Clone() Conversation {
	c.Messages = CloneMessages(c.Messages)
	return c
}
