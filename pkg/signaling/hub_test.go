/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package signaling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/duocall/relay_core/pkg/utils"
)

func TestHubDispatchSerializesTasks(t *testing.T) {
	hub := NewHub(utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// counter is mutated without a lock; only safe if the hub really runs
	// tasks one at a time.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.Dispatch(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	done := make(chan int)
	hub.Dispatch(func() { done <- counter })

	select {
	case got := <-done:
		if got != 1000 {
			t.Errorf("expected 1000 task executions, got %d", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hub loop did not drain dispatched tasks")
	}
}

func TestHubShutdownUnblocksConnectionTeardown(t *testing.T) {
	hub := NewHub(utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	// A connection goroutine finishing its teardown after the loop has
	// exited must not hang on the unregister handoff.
	released := make(chan struct{})
	go func() {
		hub.release(&Client{id: "late", send: make(chan []byte, 1)})
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("client teardown blocked after hub shutdown")
	}

	// Likewise a task dispatched after shutdown is dropped, not stuck.
	dispatched := make(chan struct{})
	go func() {
		hub.Dispatch(func() {})
		close(dispatched)
	}()

	select {
	case <-dispatched:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked after hub shutdown")
	}
}

func TestHubSendToUnknownClient(t *testing.T) {
	hub := NewHub(utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	done := make(chan struct{})
	hub.Dispatch(func() {
		// Must not panic or block when the participant is gone.
		hub.SendTo("nobody", EventWaiting, nil)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("SendTo to unknown client blocked the loop")
	}
}
