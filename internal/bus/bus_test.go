package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"solbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestBus_PublishAndSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.Event{Kind: domain.KindCommand, Name: "start", UserID: 7})

	select {
	case ev := <-b.Subscribe():
		if ev.Name != "start" || ev.UserID != 7 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestBus_ReplyHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	var got atomic.Int64
	b.OnReply(func(r domain.Reply) {
		got.Store(r.ChatID)
	})

	b.SendReply(domain.Reply{ChatID: 42, Text: "hi"})

	if got.Load() != 42 {
		t.Fatalf("expected reply routed to handler, got chat %d", got.Load())
	}
}

func TestBus_SendReplyWithoutHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	// Must not panic when no handler is registered.
	b.SendReply(domain.Reply{ChatID: 1, Text: "dropped"})
}

func TestBus_PublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Must not panic on a closed bus.
	b.Publish(domain.Event{Kind: domain.KindCallback, Name: "magic"})
}
