// Package httpapi implements the local HTTP front-end of spec.md section
// 6: wallet info, chain/pool introspection, and transaction submission.
// Generalizes the teacher's node_api.go (net/http ServeMux, hand-rolled
// routing) to gorilla/mux, grounded on the rest of the pack's HTTP
// services (ethereum-go-ethereum's builder/relay client tests route
// similarly-shaped REST surfaces through mux). Handlers return the raw
// domain structs as JSON with no envelope, per
// original_source/src/http_server/transact.rs and wallet.rs.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dyst0rti0n/ledgernode/internal/blockchain"
	"github.com/Dyst0rti0n/ledgernode/internal/coordinator"
	"github.com/Dyst0rti0n/ledgernode/internal/pool"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/wallet"
)

// Server is the HTTP front-end. It never mutates shared state directly
// except through Pool (the pool's own lock makes that safe concurrently
// with the coordinator); broadcasting is always requested via Commands,
// never performed inline.
type Server struct {
	Blockchain *blockchain.Blockchain
	Pool       *pool.Pool
	Wallet     *wallet.Wallet
	Commands   chan<- coordinator.Command

	log    *logrus.Entry
	router *mux.Router
}

// New builds a Server and registers its routes.
func New(bc *blockchain.Blockchain, p *pool.Pool, w *wallet.Wallet, commands chan<- coordinator.Command, log *logrus.Entry) *Server {
	s := &Server{
		Blockchain: bc,
		Pool:       p,
		Wallet:     w,
		Commands:   commands,
		log:        log,
		router:     mux.NewRouter(),
	}
	s.router.HandleFunc("/api/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/api/blocks", s.handleBlocks).Methods(http.MethodGet)
	s.router.HandleFunc("/api/transaction-pool-map", s.handlePoolMap).Methods(http.MethodGet)
	s.router.HandleFunc("/api/wallet-info", s.handleWalletInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/api/transact", s.handleTransact).Methods(http.MethodPost)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ledgernode: node online")
}

func (s *Server) handleBlocks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Blockchain.Blocks())
}

func (s *Server) handlePoolMap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Pool.Map())
}

type walletInfoResponse struct {
	PublicKey string `json:"public_key"`
	Balance   uint32 `json:"balance"`
}

func (s *Server) handleWalletInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, walletInfoResponse{
		PublicKey: hex.EncodeToString(s.Wallet.PublicKey()),
		Balance:   s.Wallet.Balance(),
	})
}

type transactRequest struct {
	Amount    uint32 `json:"amount"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleTransact(w http.ResponseWriter, r *http.Request) {
	var req transactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	recipient, err := hex.DecodeString(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed recipient hex")
		return
	}

	// SubmitTransaction holds the pool's write lock across the whole
	// find-existing/update-or-create sequence, so the HTTP writer never
	// mutates a transaction the coordinator goroutine is concurrently
	// reading via GetValidTransactions/Map (spec.md section 5).
	tx, err := s.Pool.SubmitTransaction(
		s.Wallet.PublicKey(),
		func(existing *transaction.Transaction) error {
			return existing.Update(s.Wallet.Keys(), recipient, req.Amount)
		},
		func() (*transaction.Transaction, error) {
			return s.Wallet.CreateTransaction(req.Amount, recipient, s.Blockchain.Blocks())
		},
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.submitCommand(coordinator.Command{Kind: coordinator.CmdBroadcastTransaction, TransactionID: tx.ID})

	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) submitCommand(cmd coordinator.Command) {
	select {
	case s.Commands <- cmd:
	default:
		s.log.WithField("kind", cmd.Kind).Warn("coordinator command channel full, dropping command")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
