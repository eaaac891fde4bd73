package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/indexing/ingest"
	syncctl "github.com/AugustoL/openscan/internal/indexing/sync"
	"github.com/AugustoL/openscan/internal/infra/storage/memory"
)

var testNetwork = domain.Network{Name: "local", ChainID: domain.ChainIDLocal}

type fakeSource struct{ head uint64 }

func (f *fakeSource) LatestBlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }
func (f *fakeSource) GetBlock(ctx context.Context, number uint64, includeBodies bool) (map[string]any, error) {
	return nil, errors.New("not served")
}
func (f *fakeSource) GetReceipt(ctx context.Context, txHash string) (map[string]any, error) {
	return nil, errors.New("not served")
}
func (f *fakeSource) GasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeSource) IsSyncing(ctx context.Context) (bool, error)    { return false, nil }
func (f *fakeSource) FetchBlockRange(ctx context.Context, start, end uint64) ([]map[string]any, error) {
	return nil, errors.New("not served")
}
func (f *fakeSource) FetchLatestBlocks(ctx context.Context, count uint64) ([]map[string]any, error) {
	return nil, errors.New("not served")
}

const (
	sender   = "0xaaa9c75e134cfa1e38a387c7a17e52e77c6afd34"
	receiver = "0xbbb9c75e134cfa1e38a387c7a17e52e77c6afd34"
	txA      = "0x1111111111111111111111111111111111111111111111111111111111111111"
	txB      = "0x2222222222222222222222222222222222222222222222222222222222222222"
	topicXfr = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
)

// seedStore loads two blocks, two transactions, one receipt with a log, and
// the stats row.
func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	for n := uint64(49); n <= 50; n++ {
		if _, err := uow.InsertBlock(ctx, &domain.Block{
			Number:  n,
			Hash:    fmt.Sprintf("0xb%063x", n),
			ChainID: testNetwork.ChainID,
		}); err != nil {
			t.Fatal(err)
		}
	}
	to := receiver
	if _, err := uow.InsertTransaction(ctx, &domain.Transaction{
		Hash: txA, BlockNumber: 50, TransactionIndex: 0,
		FromAddress: sender, ToAddress: &to, Value: "1000000000000000000",
		ChainID: testNetwork.ChainID,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := uow.InsertTransaction(ctx, &domain.Transaction{
		Hash: txB, BlockNumber: 49, TransactionIndex: 0,
		FromAddress: receiver, ToAddress: &to, Value: "0",
		ChainID: testNetwork.ChainID,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := uow.InsertReceipt(ctx, &domain.Receipt{
		TransactionHash: txA, BlockNumber: 50, FromAddress: sender, ToAddress: &to,
		Status: domain.ReceiptStatusSuccess, EffectiveGasPrice: "1000000000",
	}); err != nil {
		t.Fatal(err)
	}
	topic := topicXfr
	if err := uow.InsertLogs(ctx, []*domain.Log{{
		TransactionHash: txA, LogIndex: 0, BlockNumber: 50,
		Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Data:    "0x00", Topic0: &topic,
	}}); err != nil {
		t.Fatal(err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := store.Stats().Upsert(ctx, &domain.NetworkStats{
		ChainID: testNetwork.ChainID, CurrentBlockNumber: 200,
		CurrentGasPrice: "1000000000", LastUpdated: 1700000000,
	}); err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestServer(t *testing.T, head uint64) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := seedStore(t)
	log := slog.New(slog.DiscardHandler)
	src := &fakeSource{head: head}
	in := ingest.New(src, store, testNetwork, log)
	ctrl := syncctl.New(src, store, in, testNetwork, log)
	srv := NewServer(store, ctrl, testNetwork, 0, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestLatestBlocks(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var blocks []struct {
		Number           uint64 `json:"number"`
		TransactionCount int    `json:"transaction_count"`
	}
	getJSON(t, ts.URL+"/blocks/latest?limit=2", http.StatusOK, &blocks)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Number != 50 || blocks[1].Number != 49 {
		t.Errorf("blocks out of order: %+v", blocks)
	}
	if blocks[0].TransactionCount != 1 {
		t.Errorf("block 50 transaction_count = %d, want 1", blocks[0].TransactionCount)
	}
}

func TestBlockByNumber(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var block struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	}
	getJSON(t, ts.URL+"/blocks/50", http.StatusOK, &block)
	if block.Number != 50 {
		t.Errorf("number = %d, want 50", block.Number)
	}

	getJSON(t, ts.URL+"/blocks/999", http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/blocks/notanumber", http.StatusBadRequest, nil)
}

func TestTransactionWithReceiptAndLogs(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var tx struct {
		Hash    string `json:"hash"`
		Receipt *struct {
			Status uint64 `json:"status"`
		} `json:"receipt"`
		Logs []struct {
			Topic0 *string `json:"topic0"`
		} `json:"logs"`
	}
	getJSON(t, ts.URL+"/transactions/"+txA, http.StatusOK, &tx)
	if tx.Hash != txA {
		t.Errorf("hash = %s", tx.Hash)
	}
	if tx.Receipt == nil || tx.Receipt.Status != domain.ReceiptStatusSuccess {
		t.Errorf("receipt = %+v", tx.Receipt)
	}
	if len(tx.Logs) != 1 || tx.Logs[0].Topic0 == nil || *tx.Logs[0].Topic0 != topicXfr {
		t.Errorf("logs = %+v", tx.Logs)
	}

	// txB was indexed without a receipt; the endpoint still serves it.
	var bare struct {
		Hash    string          `json:"hash"`
		Receipt json.RawMessage `json:"receipt"`
	}
	getJSON(t, ts.URL+"/transactions/"+txB, http.StatusOK, &bare)
	if string(bare.Receipt) != "null" {
		t.Errorf("receipt = %s, want null", bare.Receipt)
	}
}

func TestAddressTransactions(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var txs []struct {
		Hash string `json:"hash"`
	}
	getJSON(t, ts.URL+"/address/"+sender+"/transactions?direction=sent", http.StatusOK, &txs)
	if len(txs) != 1 || txs[0].Hash != txA {
		t.Fatalf("sent txs = %+v", txs)
	}

	getJSON(t, ts.URL+"/address/"+receiver+"/transactions", http.StatusOK, &txs)
	if len(txs) != 2 {
		t.Fatalf("got %d txs for receiver, want 2", len(txs))
	}

	getJSON(t, ts.URL+"/address/"+sender+"/transactions?direction=upward", http.StatusBadRequest, nil)
}

func TestLogsFilter(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var logs []struct {
		Address string `json:"address"`
	}
	getJSON(t, ts.URL+"/logs?topic0="+topicXfr, http.StatusOK, &logs)
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}

	getJSON(t, ts.URL+"/logs?topic0=0xdeadbeef", http.StatusOK, &logs)
	if len(logs) != 0 {
		t.Errorf("non-matching topic returned %d logs", len(logs))
	}
}

func TestNetworkStats(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var stats struct {
		ChainID            uint64 `json:"chain_id"`
		CurrentBlockNumber uint64 `json:"current_block_number"`
	}
	getJSON(t, ts.URL+"/network/stats", http.StatusOK, &stats)
	if stats.ChainID != testNetwork.ChainID || stats.CurrentBlockNumber != 200 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSyncStatus(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var status struct {
		Synced         bool    `json:"synced"`
		LatestIndexed  *uint64 `json:"latest_indexed_block"`
		BlocksBehind   uint64  `json:"blocks_behind"`
		SyncPercentage float64 `json:"sync_percentage"`
	}
	getJSON(t, ts.URL+"/sync/status", http.StatusOK, &status)
	if status.Synced {
		t.Error("50/200 should not be synced")
	}
	if status.LatestIndexed == nil || *status.LatestIndexed != 50 {
		t.Errorf("latest_indexed_block = %v", status.LatestIndexed)
	}
	if status.BlocksBehind != 150 || status.SyncPercentage != 25.0 {
		t.Errorf("behind=%d pct=%v", status.BlocksBehind, status.SyncPercentage)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, 200)

	var health map[string]string
	getJSON(t, ts.URL+"/health", http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}
}
