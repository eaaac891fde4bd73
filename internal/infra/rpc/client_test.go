package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int    `json:"id"`
}

func newTestServer(t *testing.T, handler func(req rpcRequest) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		result, rerr := handler(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestLatestBlockNumber(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) (any, *rpcError) {
		if req.Method != "eth_blockNumber" {
			t.Errorf("unexpected method %s", req.Method)
		}
		return "0x64", nil
	})
	defer srv.Close()

	c := NewClient(1, srv.URL)
	head, err := c.LatestBlockNumber(context.Background())
	if err != nil {
		t.Fatalf("LatestBlockNumber: %v", err)
	}
	if head != 100 {
		t.Errorf("head = %d, want 100", head)
	}
}

func TestGetBlock_NullResult(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) (any, *rpcError) {
		return nil, nil
	})
	defer srv.Close()

	c := NewClient(1, srv.URL)
	_, err := c.GetBlock(context.Background(), 999, true)
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestCall_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "0x1"})
	}))
	defer srv.Close()

	c := NewClient(1, srv.URL, WithMaxRetries(4), WithTimeout(5*time.Second))
	head, err := c.LatestBlockNumber(context.Background())
	if err != nil {
		t.Fatalf("expected recovery after retries: %v", err)
	}
	if head != 1 {
		t.Errorf("head = %d, want 1", head)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestCall_ProtocolErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(req rpcRequest) (any, *rpcError) {
		calls.Add(1)
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	})
	defer srv.Close()

	c := NewClient(1, srv.URL, WithMaxRetries(4))
	if _, err := c.LatestBlockNumber(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on protocol error)", got)
	}
}

func TestFetchBlockRange_SkipsFailedBlocks(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) (any, *rpcError) {
		num, _ := req.Params[0].(string)
		if num == "0x2" {
			return nil, &rpcError{Code: -32602, Message: "boom"}
		}
		return map[string]any{"number": num, "transactions": []any{}}, nil
	})
	defer srv.Close()

	c := NewClient(1, srv.URL)
	blocks, err := c.FetchBlockRange(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("FetchBlockRange: %v", err)
	}
	if len(blocks) != 2 {
		t.Errorf("got %d blocks, want 2 (block 2 skipped)", len(blocks))
	}
}

func TestFetchLatestBlocks_ClampsToGenesis(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) (any, *rpcError) {
		if req.Method == "eth_blockNumber" {
			return "0x2", nil
		}
		return map[string]any{"number": req.Params[0], "transactions": []any{}}, nil
	})
	defer srv.Close()

	c := NewClient(1, srv.URL)
	blocks, err := c.FetchLatestBlocks(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchLatestBlocks: %v", err)
	}
	// Head is 2, so only blocks 0..2 exist.
	if len(blocks) != 3 {
		t.Errorf("got %d blocks, want 3", len(blocks))
	}
}
