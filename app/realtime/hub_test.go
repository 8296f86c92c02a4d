package realtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestHub_FanOut(t *testing.T) {
	hub := NewLocalHub("feedsync:posts")
	defer hub.Close()

	var first, second []Event
	hub.Subscribe(func(e Event) { first = append(first, e) })
	hub.Subscribe(func(e Event) { second = append(second, e) })

	event := Event{NewItemID: "post-1", AuthorID: "author-1"}
	hub.Dispatch(event)

	if len(first) != 1 || first[0].NewItemID != "post-1" {
		t.Errorf("First subscriber got %v", first)
	}
	if len(second) != 1 || second[0].NewItemID != "post-1" {
		t.Errorf("Second subscriber got %v", second)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewLocalHub("feedsync:posts")
	defer hub.Close()

	var received int
	sub := hub.Subscribe(func(e Event) { received++ })

	hub.Dispatch(Event{NewItemID: "a"})
	sub.Unsubscribe()
	hub.Dispatch(Event{NewItemID: "b"})

	if received != 1 {
		t.Errorf("Expected 1 delivery, got %d", received)
	}
	if hub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewLocalHub("feedsync:posts")
	defer hub.Close()

	sub := hub.Subscribe(func(e Event) {})
	other := hub.Subscribe(func(e Event) {})

	// Double-unsubscribe must not panic or touch other subscriptions
	sub.Unsubscribe()
	sub.Unsubscribe()

	if hub.SubscriberCount() != 1 {
		t.Errorf("Expected 1 remaining subscriber, got %d", hub.SubscriberCount())
	}
	other.Unsubscribe()
}

func TestHub_LocalPublishDispatchesInProcess(t *testing.T) {
	hub := NewLocalHub("feedsync:posts")
	defer hub.Close()

	var received []Event
	hub.Subscribe(func(e Event) { received = append(received, e) })

	if err := hub.Publish(context.Background(), Event{NewItemID: "a", AuthorID: "b"}); err != nil {
		t.Fatalf("Local publish failed: %v", err)
	}

	if len(received) != 1 || received[0].NewItemID != "a" {
		t.Errorf("Expected local publish to dispatch, got %v", received)
	}
}

func TestHub_DispatchWithoutSubscribers(t *testing.T) {
	hub := NewLocalHub("feedsync:posts")
	defer hub.Close()

	// No subscribers is a valid state, events are dropped
	hub.Dispatch(Event{NewItemID: "a"})
}

func TestNewHub_InvalidAddr(t *testing.T) {
	_, err := NewHub("invalid:0", 0, "feedsync:posts")
	if err == nil {
		t.Error("Expected error for unreachable Redis address")
	}
}

func TestHub_CloseStopsDispatchLoop(t *testing.T) {
	addr := startFakeBroker(t)

	hub, err := NewHub(addr, 0, "feedsync:posts")
	if err != nil {
		t.Fatalf("Failed to connect hub: %v", err)
	}
	if err := hub.Run(); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}

	// Close must tear down the dispatch loop, not wait on it forever
	done := make(chan struct{})
	go func() {
		hub.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the dispatch loop was running")
	}
}

func TestHub_CloseBeforeRun(t *testing.T) {
	addr := startFakeBroker(t)

	hub, err := NewHub(addr, 0, "feedsync:posts")
	if err != nil {
		t.Fatalf("Failed to connect hub: %v", err)
	}

	// Close without Run must not block or panic
	hub.Close()
}

// startFakeBroker listens on a loopback port and speaks just enough of the
// Redis protocol for connect, ping and channel subscription.
func startFakeBroker(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveBrokerConn(conn)
		}
	}()

	return ln.Addr().String()
}

func serveBrokerConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		args, err := readBrokerCommand(reader)
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}

		switch strings.ToUpper(args[0]) {
		case "HELLO":
			// Declining the handshake drops the client to the old protocol
			conn.Write([]byte("-ERR unknown command 'HELLO'\r\n"))
		case "PING":
			conn.Write([]byte("+PONG\r\n"))
		case "SUBSCRIBE":
			channel := args[1]
			fmt.Fprintf(conn, "*3\r\n$9\r\nsubscribe\r\n$%d\r\n%s\r\n:1\r\n", len(channel), channel)
		default:
			conn.Write([]byte("+OK\r\n"))
		}
	}
}

func readBrokerCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected line %q", line)
	}
	count, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, count)
	for i := 0; i < count; i++ {
		sizeLine, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeLine = strings.TrimRight(sizeLine, "\r\n")
		if !strings.HasPrefix(sizeLine, "$") {
			return nil, fmt.Errorf("unexpected size line %q", sizeLine)
		}
		size, err := strconv.Atoi(sizeLine[1:])
		if err != nil {
			return nil, err
		}

		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}

	return args, nil
}
