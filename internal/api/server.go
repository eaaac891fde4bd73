// Package api exposes the indexed chain data over HTTP. Every endpoint is a
// read-only projection of storage; nothing here mutates state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AugustoL/openscan/internal/core/domain"
	syncctl "github.com/AugustoL/openscan/internal/indexing/sync"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

// Server serves the query API for one chain.
type Server struct {
	store      storage.Store
	controller *syncctl.Controller
	network    domain.Network
	server     *http.Server
	log        *slog.Logger
}

// NewServer creates the query API server.
func NewServer(store storage.Store, controller *syncctl.Controller, network domain.Network, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:      store,
		controller: controller,
		network:    network,
		log:        log.With("chain", network.Name),
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route mux. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /blocks/latest", s.handleLatestBlocks)
	mux.HandleFunc("GET /blocks/{number}", s.handleBlockByNumber)
	mux.HandleFunc("GET /blocks/hash/{hash}", s.handleBlockByHash)
	mux.HandleFunc("GET /transactions/{hash}", s.handleTransaction)
	mux.HandleFunc("GET /address/{address}/transactions", s.handleAddressTransactions)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("GET /network/stats", s.handleNetworkStats)
	mux.HandleFunc("GET /sync/status", s.handleSyncStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("query API listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) storageError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.log.Error("query failed", "what", what, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func queryUintPtr(r *http.Request, key string) (*uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return &n, nil
}

func queryStringPtr(r *http.Request, key string) *string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	return &raw
}

type blockResponse struct {
	*domain.Block
	TransactionCount int `json:"transaction_count"`
}

func (s *Server) blockWithCount(ctx context.Context, b *domain.Block) (*blockResponse, error) {
	count, err := s.store.Transactions().CountByBlock(ctx, b.Number)
	if err != nil {
		return nil, err
	}
	return &blockResponse{Block: b, TransactionCount: count}, nil
}

func (s *Server) handleLatestBlocks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit > 100 {
		limit = 100
	}
	blocks, err := s.store.Blocks().Latest(r.Context(), s.network.ChainID, limit)
	if err != nil {
		s.storageError(w, err, "blocks")
		return
	}
	out := make([]*blockResponse, 0, len(blocks))
	for _, b := range blocks {
		resp, err := s.blockWithCount(r.Context(), b)
		if err != nil {
			s.storageError(w, err, "blocks")
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBlockByNumber(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(r.PathValue("number"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block number")
		return
	}
	block, err := s.store.Blocks().GetByNumber(r.Context(), s.network.ChainID, number)
	if err != nil {
		s.storageError(w, err, "block")
		return
	}
	resp, err := s.blockWithCount(r.Context(), block)
	if err != nil {
		s.storageError(w, err, "block")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(r.PathValue("hash"))
	block, err := s.store.Blocks().GetByHash(r.Context(), s.network.ChainID, hash)
	if err != nil {
		s.storageError(w, err, "block")
		return
	}
	resp, err := s.blockWithCount(r.Context(), block)
	if err != nil {
		s.storageError(w, err, "block")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type transactionResponse struct {
	*domain.Transaction
	Receipt *domain.Receipt `json:"receipt"`
	Logs    []*domain.Log   `json:"logs"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(r.PathValue("hash"))
	tx, err := s.store.Transactions().GetByHash(r.Context(), hash)
	if err != nil {
		s.storageError(w, err, "transaction")
		return
	}
	resp := &transactionResponse{Transaction: tx}

	// A transaction may have been indexed before its receipt fetch succeeded.
	receipt, err := s.store.Receipts().GetByTransaction(r.Context(), hash)
	switch {
	case err == nil:
		resp.Receipt = receipt
		logs, err := s.store.Logs().ListByTransaction(r.Context(), hash)
		if err != nil {
			s.storageError(w, err, "logs")
			return
		}
		resp.Logs = logs
	case !errors.Is(err, storage.ErrNotFound):
		s.storageError(w, err, "receipt")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddressTransactions(w http.ResponseWriter, r *http.Request) {
	f := storage.AddressTxFilter{
		Address:   strings.ToLower(r.PathValue("address")),
		Direction: r.URL.Query().Get("direction"),
		Ascending: r.URL.Query().Get("sort") == "asc",
	}
	switch f.Direction {
	case "", "sent", "received", "both":
		if f.Direction == "both" {
			f.Direction = ""
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid direction (want sent, received, or both)")
		return
	}

	var err error
	if f.Offset, err = queryInt(r, "skip", 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Limit, err = queryInt(r, "limit", 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.FromBlock, err = queryUintPtr(r, "from_block"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.ToBlock, err = queryUintPtr(r, "to_block"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.store.Transactions().ListByAddress(r.Context(), f)
	if err != nil {
		s.storageError(w, err, "transactions")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	f := storage.LogFilter{
		Address: queryStringPtr(r, "address"),
		Topic0:  queryStringPtr(r, "topic0"),
		Topic1:  queryStringPtr(r, "topic1"),
		Topic2:  queryStringPtr(r, "topic2"),
		Topic3:  queryStringPtr(r, "topic3"),
	}
	var err error
	if f.Offset, err = queryInt(r, "skip", 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Limit, err = queryInt(r, "limit", 100); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.FromBlock, err = queryUintPtr(r, "from_block"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.ToBlock, err = queryUintPtr(r, "to_block"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := s.store.Logs().List(r.Context(), f)
	if err != nil {
		s.storageError(w, err, "logs")
		return
	}
	if logs == nil {
		logs = []*domain.Log{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats().Get(r.Context(), s.network.ChainID)
	if err != nil {
		s.storageError(w, err, "network stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.controller.SyncStatus(r.Context())
	if err != nil {
		s.log.Error("sync status failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "chain head unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"network": s.network.Name,
	})
}
