package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"solbot/internal/bus"
	"solbot/internal/domain"
)

// panicOracle simulates a broken collaborator to exercise task isolation.
type panicOracle struct{}

func (panicOracle) GetBalance(context.Context, string) (float64, error) {
	panic("oracle exploded")
}

func runDispatcher(t *testing.T, c *Controller) (*bus.InMemoryBus, <-chan domain.Reply, context.CancelFunc) {
	t.Helper()
	b := bus.New(10, testLogger())
	replies := make(chan domain.Reply, 10)
	b.OnReply(func(r domain.Reply) { replies <- r })

	d := NewDispatcher(DispatcherConfig{
		Controller: c,
		Bus:        b,
		Logger:     testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	return b, replies, cancel
}

func waitReply(t *testing.T, replies <-chan domain.Reply) domain.Reply {
	t.Helper()
	select {
	case r := <-replies:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return domain.Reply{}
	}
}

func TestDispatcher_RoutesEventToReply(t *testing.T) {
	c, _ := newTestController(&stubOracle{sol: 3})
	b, replies, cancel := runDispatcher(t, c)
	defer cancel()

	b.Publish(command("start"))

	r := waitReply(t, replies)
	if !strings.Contains(r.Text, "Welcome") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r.ChatID != 10 {
		t.Fatalf("reply routed to wrong chat: %d", r.ChatID)
	}
}

func TestDispatcher_PanicIsIsolated(t *testing.T) {
	c, store := newTestController(panicOracle{})
	store.SetWallet(1, validAddr("wallet"))
	b, replies, cancel := runDispatcher(t, c)
	defer cancel()

	// This event makes the oracle panic inside the handler.
	b.Publish(callback(cbCheckBalance))
	r := waitReply(t, replies)
	if !strings.Contains(r.Text, "something went wrong") {
		t.Fatalf("panic should surface as a generic reply, got %q", r.Text)
	}

	// The dispatcher must still be alive for the next event.
	b.Publish(command("start"))
	r = waitReply(t, replies)
	if !strings.Contains(r.Text, "Welcome") {
		t.Fatalf("dispatcher did not survive the panic: %q", r.Text)
	}
}

func TestDispatcher_SameUserEventsStaySerialized(t *testing.T) {
	// A slow oracle holds user 1's lock; user 2 must not be blocked.
	slow := &blockingOracle{release: make(chan struct{})}
	c, store := newTestController(slow)
	store.SetWallet(1, validAddr("userone"))
	b, replies, cancel := runDispatcher(t, c)
	defer cancel()

	b.Publish(callback(cbCheckBalance)) // user 1, blocks in oracle
	b.Publish(domain.Event{Kind: domain.KindCommand, Name: "start", UserID: 2, ChatID: 20})

	// User 2's reply arrives while user 1 is still inside the oracle.
	r := waitReply(t, replies)
	if r.ChatID != 20 {
		t.Fatalf("expected user 2's reply first, got chat %d", r.ChatID)
	}

	close(slow.release)
	r = waitReply(t, replies)
	if r.ChatID != 10 {
		t.Fatalf("expected user 1's reply after release, got chat %d", r.ChatID)
	}
}

func TestDispatcher_SlowUserBurstDoesNotStarveOthers(t *testing.T) {
	// User 1 fires more slow balance checks than there are concurrency
	// slots. Only the one being handled may hold a slot; the rest wait in
	// user 1's queue, leaving slots free for user 2.
	slow := &blockingOracle{release: make(chan struct{})}
	c, store := newTestController(slow)
	store.SetWallet(1, validAddr("userone"))
	b, replies, cancel := runDispatcher(t, c)
	defer cancel()

	for i := 0; i < defaultConcurrency; i++ {
		b.Publish(callback(cbCheckBalance))
	}
	b.Publish(domain.Event{Kind: domain.KindCommand, Name: "start", UserID: 2, ChatID: 20})

	r := waitReply(t, replies)
	if r.ChatID != 20 {
		t.Fatalf("expected user 2's reply while user 1's burst is pending, got chat %d", r.ChatID)
	}

	close(slow.release)
	for i := 0; i < defaultConcurrency; i++ {
		r = waitReply(t, replies)
		if r.ChatID != 10 {
			t.Fatalf("expected user 1's reply after release, got chat %d", r.ChatID)
		}
	}
}

func TestDispatcher_SameUserEventsKeepArrivalOrder(t *testing.T) {
	// A connect followed immediately by a balance check must answer in that
	// order, with the check seeing the wallet the connect wrote. The connect
	// reply appends and the check reply edits, so an inversion shows up as
	// an edit arriving first.
	c, _ := newTestController(&stubOracle{sol: 1.5})
	b, replies, cancel := runDispatcher(t, c)
	defer cancel()

	addr := validAddr("ordered")
	for i := 0; i < 50; i++ {
		b.Publish(command("connectwallet", addr))
		b.Publish(callback(cbCheckBalance))

		r := waitReply(t, replies)
		if r.Edit || !strings.Contains(r.Text, "has been saved") {
			t.Fatalf("iteration %d: balance check ran before the earlier connect: %q", i, r.Text)
		}
		r = waitReply(t, replies)
		if !r.Edit || strings.Contains(r.Text, "don't have a connected wallet") {
			t.Fatalf("iteration %d: check reply out of order: %q", i, r.Text)
		}
		if !strings.Contains(r.Text, "1.500000 SOL") {
			t.Fatalf("iteration %d: unexpected balance reply: %q", i, r.Text)
		}
	}
}

type blockingOracle struct {
	release chan struct{}
}

func (o *blockingOracle) GetBalance(ctx context.Context, _ string) (float64, error) {
	select {
	case <-o.release:
	case <-ctx.Done():
	}
	return 1, nil
}
