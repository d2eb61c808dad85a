package utils

import (
	"net/http/httptest"
	"testing"
)

func TestSendSSEEventFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := SendSSEEvent(rec, rec, "block", map[string]string{"type": "text"}); err != nil {
		t.Fatalf("SendSSEEvent err: %v", err)
	}

	want := "event: block\ndata: {\"type\":\"text\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
}

func TestSendSSEEventRejectsUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := SendSSEEvent(rec, rec, "block", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected nothing written, got %q", rec.Body.String())
	}
}
