package domain

import "context"

// BalanceOracle reads an address's on-chain balance in whole SOL.
// Implementations perform exactly one outbound call per invocation and
// collapse every failure mode into a single unreachable error category.
type BalanceOracle interface {
	GetBalance(ctx context.Context, address string) (float64, error)
}
