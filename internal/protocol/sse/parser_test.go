package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoFrames = "event: block\ndata: {\"type\":\"text\",\"data\":\"Hi there\"}\n\nevent: done\ndata: {}\n\n"

func TestFeedSingleChunk(t *testing.T) {
	p := NewParser()

	frames := p.FeedString(twoFrames)

	require.Len(t, frames, 2)
	assert.Equal(t, "block", frames[0].EventType)
	assert.JSONEq(t, `{"type":"text","data":"Hi there"}`, string(frames[0].Data))
	assert.Equal(t, "done", frames[1].EventType)
	assert.Zero(t, p.Buffered())
}

func TestFeedIsIndependentOfChunkBoundaries(t *testing.T) {
	want := NewParser().FeedString(twoFrames)

	for split := 1; split < len(twoFrames); split++ {
		p := NewParser()
		var got []Frame
		got = append(got, p.FeedString(twoFrames[:split])...)
		got = append(got, p.FeedString(twoFrames[split:])...)
		require.Equal(t, want, got, "split at %d", split)
	}

	p := NewParser()
	var got []Frame
	for i := 0; i < len(twoFrames); i++ {
		got = append(got, p.FeedString(twoFrames[i:i+1])...)
	}
	assert.Equal(t, want, got)
}

func TestFeedKeepsUnterminatedTail(t *testing.T) {
	p := NewParser()

	frames := p.FeedString("event: block\ndata: {\"type\":\"text\"")
	assert.Empty(t, frames)
	assert.Positive(t, p.Buffered())

	frames = p.FeedString(",\"data\":\"x\"}\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, "block", frames[0].EventType)
}

func TestFeedDropsMalformedData(t *testing.T) {
	p := NewParser()

	frames := p.FeedString("event: block\ndata: {not json\n\nevent: block\ndata: {\"type\":\"text\",\"data\":\"ok\"}\n\n")

	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"type":"text","data":"ok"}`, string(frames[0].Data))
	assert.Equal(t, 1, p.Dropped())
}

func TestFeedDefaultsEventType(t *testing.T) {
	frames := NewParser().FeedString("data: [1,2]\n\n")

	require.Len(t, frames, 1)
	assert.Equal(t, DefaultEventType, frames[0].EventType)
}

func TestFeedKeepsFramesWithoutData(t *testing.T) {
	frames := NewParser().FeedString("event: done\n\n")

	require.Len(t, frames, 1)
	assert.Equal(t, "done", frames[0].EventType)
	assert.Nil(t, frames[0].Data)
}

func TestFeedSkipsCommentsAndBlankSegments(t *testing.T) {
	frames := NewParser().FeedString(": keep-alive\n\n\n\nevent: meta\r\ndata: {\"message_id\":\"m1\"}\r\n\n")

	require.Len(t, frames, 1)
	assert.Equal(t, "meta", frames[0].EventType)

	var meta struct {
		MessageID string `json:"message_id"`
	}
	require.NoError(t, frames[0].Decode(&meta))
	assert.Equal(t, "m1", meta.MessageID)
}

func TestFeedNeverReemitsFrames(t *testing.T) {
	p := NewParser()

	first := p.FeedString("event: done\ndata: {}\n\n")
	second := p.FeedString("")

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestFeedAcceptsCRLFFraming(t *testing.T) {
	crlf := "event: block\r\ndata: {\"type\":\"text\",\"data\":\"Hi there\"}\r\n\r\nevent: done\r\ndata: {}\r\n\r\n"
	want := NewParser().FeedString(twoFrames)

	p := NewParser()
	var got []Frame
	for i := 0; i < len(crlf); i++ {
		got = append(got, p.FeedString(crlf[i:i+1])...)
	}

	assert.Equal(t, want, got)
	assert.Zero(t, p.Buffered())
}
