package main

import (
	"testing"
	"time"

	"github.com/shardmesh/searchcore/pkg/grpc"
	"github.com/shardmesh/searchcore/pkg/proto"
)

func startRPCTestServer(t *testing.T, password string) *grpc.Server {
	t.Helper()
	s := newNodeRPCServer(password)
	go s.Serve("127.0.0.1:0")
	t.Cleanup(s.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("rpc server never bound a listen address")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s
}

func TestNodeRPCServerAcceptsCorrectPassword(t *testing.T) {
	s := startRPCTestServer(t, "secret")
	client, err := grpc.Dial(s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply proto.HealthCheckResponse
	if err := client.Call("AUTH", map[string]string{"password": "secret"}, &reply); err != nil {
		t.Fatalf("AUTH: %v", err)
	}
	if reply.Status != "SERVING" {
		t.Fatalf("Status = %q, want SERVING", reply.Status)
	}
}

func TestNodeRPCServerRejectsWrongPassword(t *testing.T) {
	s := startRPCTestServer(t, "secret")
	client, err := grpc.Dial(s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply proto.HealthCheckResponse
	if err := client.Call("AUTH", map[string]string{"password": "wrong"}, &reply); err == nil {
		t.Fatal("expected AUTH to fail with the wrong password")
	}
}

func TestNodeRPCServerHelloNegotiatesSupportedVersion(t *testing.T) {
	s := startRPCTestServer(t, "")
	client, err := grpc.Dial(s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply proto.HealthCheckResponse
	if err := client.Call("HELLO", map[string]int{"version": nodeProtocolVersion}, &reply); err != nil {
		t.Fatalf("HELLO: %v", err)
	}
	if err := client.Call("HELLO", map[string]int{"version": nodeProtocolVersion + 1}, &reply); err == nil {
		t.Fatal("expected HELLO to reject an unsupported version")
	}
}
