package main

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestLoopbackAddr(t *testing.T) {
	cases := map[string]string{
		":8080":          "127.0.0.1:8080",
		"0.0.0.0:9000":   "0.0.0.0:9000",
		"127.0.0.1:7000": "127.0.0.1:7000",
	}
	for in, want := range cases {
		if got := loopbackAddr(in); got != want {
			t.Fatalf("loopbackAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunServerDrainsBeforeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	drained := false
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, srv, time.Second, func(ctx context.Context) {
			if ctx.Err() != nil {
				t.Errorf("drain got expired context: %v", ctx.Err())
			}
			drained = true
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer err: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
	if !drained {
		t.Fatal("expected drain to run before shutdown")
	}
}
