package payment

import (
	"net/url"
	"strings"
	"testing"
)

func TestBuild_FixedFields(t *testing.T) {
	b := NewBuilder("ReceiverWallet123", 0.1, "SOL")

	i := b.Build()
	if i.Receiver != "ReceiverWallet123" {
		t.Errorf("receiver: got %q", i.Receiver)
	}
	if i.Amount != 0.1 {
		t.Errorf("amount: got %v", i.Amount)
	}
	if i.Asset != "SOL" {
		t.Errorf("asset: got %q", i.Asset)
	}
	if i.Reference == "" {
		t.Error("expected a reference id")
	}
}

func TestBuild_FreshReferencePerIntent(t *testing.T) {
	b := NewBuilder("r", 0.1, "SOL")
	if b.Build().Reference == b.Build().Reference {
		t.Fatal("each intent must carry its own reference")
	}
}

func TestDeepLink(t *testing.T) {
	i := NewBuilder("ReceiverWallet123", 0.1, "SOL").Build()

	link := i.DeepLink()
	if !strings.HasPrefix(link, "https://phantom.app/ul/send?") {
		t.Fatalf("unexpected link prefix: %q", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("recipient") != "ReceiverWallet123" {
		t.Errorf("recipient: got %q", q.Get("recipient"))
	}
	if q.Get("amount") != "0.1" {
		t.Errorf("amount: got %q", q.Get("amount"))
	}
	if q.Get("token") != "SOL" {
		t.Errorf("token: got %q", q.Get("token"))
	}
}
