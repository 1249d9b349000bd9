package grpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer()
	go func() {
		if err := s.Serve("127.0.0.1:0"); err != nil {
			t.Logf("Serve exited: %v", err)
		}
	}()
	t.Cleanup(s.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never bound a listen address")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s
}

func TestServerHandlesRegisteredMethod(t *testing.T) {
	s := startTestServer(t)
	s.Register("Echo.Say", func(_ context.Context, req json.RawMessage) (any, error) {
		var params struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(req, &params); err != nil {
			return nil, err
		}
		return map[string]string{"text": params.Text}, nil
	})

	client, err := Dial(s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply map[string]string
	if err := client.Call("Echo.Say", map[string]string{"text": "hello"}, &reply); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply["text"] != "hello" {
		t.Fatalf("reply = %v, want text=hello", reply)
	}
}

func TestServerRejectsUnknownMethod(t *testing.T) {
	s := startTestServer(t)

	client, err := Dial(s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply map[string]string
	if err := client.Call("Nonexistent.Method", nil, &reply); err == nil {
		t.Fatal("expected an error for an unregistered method")
	}
}

func TestServerMethodCount(t *testing.T) {
	s := NewServer()
	s.Register("A.One", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	s.Register("A.Two", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	if got := s.MethodCount(); got != 2 {
		t.Fatalf("MethodCount() = %d, want 2", got)
	}
}
