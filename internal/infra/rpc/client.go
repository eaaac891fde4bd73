package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/AugustoL/openscan/internal/core/normalize"
	"github.com/AugustoL/openscan/internal/indexing/metrics"
)

// ErrNoResult is returned when the node answers with a null result, e.g. a
// block number past the chain head.
var ErrNoResult = errors.New("rpc: null result")

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client is a JSON-RPC over HTTP client for a single EVM node endpoint.
// Transient transport failures are retried with exponential backoff; protocol
// errors (bad request, unknown method) fail immediately.
type Client struct {
	chainID    uint64
	chainLabel string
	endpoint   string
	httpClient *http.Client
	maxRetries uint64
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the transport-level timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries overrides the per-call limit on transient-failure retries.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a client for the given chain and endpoint.
func NewClient(chainID uint64, endpoint string, opts ...Option) *Client {
	c := &Client{
		chainID:    chainID,
		chainLabel: strconv.FormatUint(chainID, 10),
		endpoint:   endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxRetries: 4,
		log:        slog.Default().With("chain", strconv.FormatUint(chainID, 10)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID returns the chain the client is configured for.
func (c *Client) ChainID() uint64 { return c.chainID }

// call executes one JSON-RPC method with retry on transient failures.
func (c *Client) call(ctx context.Context, method string, params []any) (any, error) {
	metrics.RPCCalls.WithLabelValues(c.chainLabel, method).Inc()
	start := time.Now()

	var result any
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.doCall(ctx, method, params)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = r
		return nil
	})

	metrics.RPCLatency.WithLabelValues(c.chainLabel, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrors.WithLabelValues(c.chainLabel, method).Inc()
		return nil, err
	}
	return result, nil
}

func (c *Client) doCall(ctx context.Context, method string, params []any) (any, error) {
	if params == nil {
		params = []any{}
	}
	reqBody, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rpcResp struct {
		Result any       `json:"result"`
		Error  *rpcError `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// isTransient classifies errors the way the node tends to fail: network and
// server-side hiccups are retried, protocol errors are not.
func isTransient(err error) bool {
	var rerr *rpcError
	if errors.As(err, &rerr) {
		// -32700 parse error, -32600 invalid request, -32601 method not
		// found, -32602 invalid params: caller bugs, never retried.
		switch rerr.Code {
		case -32700, -32600, -32601, -32602:
			return false
		}
		return true
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "http 4") && !strings.Contains(s, "http 429") {
		return false
	}
	return true
}

// LatestBlockNumber returns the chain head block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	n, err := normalize.ToUint64(result)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return n, nil
}

// GetBlock fetches one block by number.
func (c *Client) GetBlock(ctx context.Context, number uint64, includeBodies bool) (map[string]any, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber",
		[]any{"0x" + strconv.FormatUint(number, 16), includeBodies})
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, err)
	}
	if result == nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, ErrNoResult)
	}
	raw, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: unexpected payload %T", number, result)
	}
	return raw, nil
}

// GetReceipt fetches the execution receipt for one transaction.
func (c *Client) GetReceipt(ctx context.Context, txHash string) (map[string]any, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt %s: %w", txHash, err)
	}
	if result == nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt %s: %w", txHash, ErrNoResult)
	}
	raw, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("eth_getTransactionReceipt %s: unexpected payload %T", txHash, result)
	}
	return raw, nil
}

// GasPrice returns the current gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.call(ctx, "eth_gasPrice", nil)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	n, err := normalize.ToBigInt(result)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return n, nil
}

// IsSyncing reports whether the node is still syncing. The node answers false
// when synced and a progress object otherwise.
func (c *Client) IsSyncing(ctx context.Context) (bool, error) {
	result, err := c.call(ctx, "eth_syncing", nil)
	if err != nil {
		return false, fmt.Errorf("eth_syncing: %w", err)
	}
	if b, ok := result.(bool); ok {
		return b, nil
	}
	return true, nil
}

// FetchBlockRange fetches blocks [start, end] with full transaction bodies.
// A block that fails to fetch is logged and skipped, mirroring the
// best-effort semantics of range ingestion.
func (c *Client) FetchBlockRange(ctx context.Context, start, end uint64) ([]map[string]any, error) {
	if start > end {
		return nil, nil
	}
	blocks := make([]map[string]any, 0, end-start+1)
	for n := start; n <= end; n++ {
		if err := ctx.Err(); err != nil {
			return blocks, err
		}
		block, err := c.GetBlock(ctx, n, true)
		if err != nil {
			c.log.Warn("failed to fetch block, skipping", "block", n, "error", err)
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// FetchLatestBlocks fetches the most recent count blocks with bodies.
func (c *Client) FetchLatestBlocks(ctx context.Context, count uint64) ([]map[string]any, error) {
	head, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	start := uint64(0)
	if head+1 > count {
		start = head - count + 1
	}
	return c.FetchBlockRange(ctx, start, head)
}
