package worker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHubUnregisterAfterShutdown(t *testing.T) {
	done := make(chan struct{})
	h := newWSHub(zerolog.Nop(), done)
	go h.run()

	client := &wsClient{send: make(chan []byte, 1)}
	if !h.registerClient(client) {
		t.Fatal("register failed on a running hub")
	}
	close(done)

	// The deferred unregister in a connection handler must return even
	// though the run loop has exited, or graceful shutdown hangs on the
	// handler.
	finished := make(chan struct{})
	go func() {
		h.unregisterClient(client)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after hub shutdown")
	}
}

func TestHubRegisterAfterShutdown(t *testing.T) {
	done := make(chan struct{})
	h := newWSHub(zerolog.Nop(), done)
	go h.run()
	close(done)

	finished := make(chan struct{})
	go func() {
		// Whether or not the run loop still services this client, the
		// call must not block.
		h.registerClient(&wsClient{send: make(chan []byte, 1)})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("register blocked after hub shutdown")
	}
}

func TestHubShutdownClosesClientSend(t *testing.T) {
	done := make(chan struct{})
	h := newWSHub(zerolog.Nop(), done)
	go h.run()

	client := &wsClient{send: make(chan []byte, 1)}
	if !h.registerClient(client) {
		t.Fatal("register failed")
	}
	close(done)

	// The write pump ranges over send; shutdown must end that loop.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on shutdown")
	}
}
