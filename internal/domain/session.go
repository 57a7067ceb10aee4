package domain

// Session is the per-user wallet-binding state. It exists only for the
// lifetime of the process; there is no entry until the user first binds a
// wallet.
type Session struct {
	UserID        int64
	WalletAddress string
	// LastKnownBalance caches the most recent successful balance read in
	// whole SOL. Nil until a query has succeeded; may be stale.
	LastKnownBalance *float64
}

// SessionStore maps user identity to wallet-binding state. Absence is a
// normal state, not an error. Implementations must be safe for concurrent
// use; each operation is atomic and the last write wins.
type SessionStore interface {
	Get(userID int64) (Session, bool)
	SetWallet(userID int64, address string)
	SetBalance(userID int64, sol float64)
}
