package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get(1); ok {
		t.Fatal("expected no session for fresh user")
	}
}

func TestStore_SetThenGet(t *testing.T) {
	s := NewStore()
	s.SetWallet(1, "addr-one")

	sess, ok := s.Get(1)
	if !ok {
		t.Fatal("expected session after SetWallet")
	}
	if sess.WalletAddress != "addr-one" {
		t.Fatalf("got %q", sess.WalletAddress)
	}
	if sess.LastKnownBalance != nil {
		t.Fatal("fresh binding should have no cached balance")
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		s.SetWallet(1, fmt.Sprintf("addr-%d", i))
	}
	sess, _ := s.Get(1)
	if sess.WalletAddress != "addr-9" {
		t.Fatalf("expected last-bound address, got %q", sess.WalletAddress)
	}
}

func TestStore_RebindDropsCachedBalance(t *testing.T) {
	s := NewStore()
	s.SetWallet(1, "addr-one")
	s.SetBalance(1, 2.5)

	sess, _ := s.Get(1)
	if sess.LastKnownBalance == nil || *sess.LastKnownBalance != 2.5 {
		t.Fatal("expected cached balance after SetBalance")
	}

	s.SetWallet(1, "addr-two")
	sess, _ = s.Get(1)
	if sess.LastKnownBalance != nil {
		t.Fatal("rebinding must drop the old address's cached balance")
	}
}

func TestStore_SetBalanceWithoutBinding(t *testing.T) {
	s := NewStore()
	s.SetBalance(1, 9.9)
	if _, ok := s.Get(1); ok {
		t.Fatal("a balance write must not create a session without a wallet")
	}
}

func TestStore_ConcurrentUsersDoNotCrossContaminate(t *testing.T) {
	s := NewStore()
	const users = 16
	const writes = 200

	var wg sync.WaitGroup
	for u := int64(0); u < users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				s.SetWallet(userID, fmt.Sprintf("user-%d-addr-%d", userID, i))
				s.SetBalance(userID, float64(i))
				if sess, ok := s.Get(userID); ok {
					want := fmt.Sprintf("user-%d-", userID)
					if len(sess.WalletAddress) < len(want) || sess.WalletAddress[:len(want)] != want {
						t.Errorf("user %d read foreign address %q", userID, sess.WalletAddress)
						return
					}
				}
			}
		}(u)
	}
	wg.Wait()

	for u := int64(0); u < users; u++ {
		sess, ok := s.Get(u)
		if !ok {
			t.Fatalf("user %d lost their session", u)
		}
		want := fmt.Sprintf("user-%d-addr-%d", u, writes-1)
		if sess.WalletAddress != want {
			t.Fatalf("user %d: got %q, want %q", u, sess.WalletAddress, want)
		}
	}

	if s.Len() != users {
		t.Fatalf("expected %d sessions, got %d", users, s.Len())
	}
}
