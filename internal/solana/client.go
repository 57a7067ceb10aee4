// Package solana queries a Solana JSON-RPC node for account balances.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultLamportsPerSol = 1_000_000_000
)

// ErrUnreachable is the single failure category the oracle exposes.
// Timeout, transport errors, bad status, and malformed payloads all wrap it;
// the underlying cause is kept in the wrapped error for logging only, since
// the caller's remedy (tell the user to retry later) is the same in every case.
var ErrUnreachable = errors.New("solana rpc unreachable")

// Config holds the RPC client settings.
type Config struct {
	RPCURL         string
	Timeout        time.Duration
	LamportsPerSol int64
	Logger         *slog.Logger
}

// Client is a minimal JSON-RPC 2.0 client for the getBalance method.
// It performs exactly one outbound call per invocation; no caching, no
// retries.
type Client struct {
	rpcURL  string
	timeout time.Duration
	scale   float64
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.LamportsPerSol <= 0 {
		cfg.LamportsPerSol = defaultLamportsPerSol
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		rpcURL:  cfg.RPCURL,
		timeout: cfg.Timeout,
		scale:   float64(cfg.LamportsPerSol),
		http:    newHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result *struct {
		Value *uint64 `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// GetBalance returns the address's balance in whole SOL. The call is bounded
// by the configured timeout; on expiry the in-flight request is abandoned
// and reported as ErrUnreachable like every other failure.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getBalance",
		Params:  []any{address},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: marshal request: %v", ErrUnreachable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUnreachable, err)
	}
	if rr.Error != nil {
		return 0, fmt.Errorf("%w: rpc error %d: %s", ErrUnreachable, rr.Error.Code, rr.Error.Message)
	}
	if rr.Result == nil || rr.Result.Value == nil {
		return 0, fmt.Errorf("%w: response missing result.value", ErrUnreachable)
	}

	sol := float64(*rr.Result.Value) / c.scale
	c.logger.Debug("balance fetched",
		"lamports", *rr.Result.Value,
		"sol", sol,
		"took", time.Since(start),
	)
	return sol, nil
}
