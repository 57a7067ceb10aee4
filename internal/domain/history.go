package domain

import (
	"context"
	"time"
)

// BindingRecord is one wallet-binding event in the audit history.
type BindingRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// QueryRecord is one balance-query outcome in the audit history.
type QueryRecord struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Sol       float64   `json:"sol"`
	OK        bool      `json:"ok"`
	Detail    string    `json:"detail,omitempty"` // failure detail, operator-facing
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore is an append-only operational audit trail. The flow
// controller only ever writes to it; sessions are never reconstructed from
// it, so losing the file loses nothing but audit data.
type HistoryStore interface {
	RecordBinding(ctx context.Context, userID int64, address string) error
	RecordQuery(ctx context.Context, rec QueryRecord) error
	ListBindings(ctx context.Context, limit int) ([]BindingRecord, error)
	ListQueries(ctx context.Context, limit int) ([]QueryRecord, error)
	Close() error
}
