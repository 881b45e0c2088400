package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loantender/core"
	"loantender/crypto"
	"loantender/native/auction"
	"loantender/native/custody"
	nativecommon "loantender/native/common"
	"loantender/native/positions"
	"loantender/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020

	codeLoanNotFound        = -32040
	codeInvalidLoanStatus   = -32041
	codeAuctionEnded        = -32042
	codeExceedsMaxRepayment = -32043
	codeBidHasNoInterest    = -32044
	codeNotBetterBid        = -32045
	codeAuctionOpen         = -32046
	codeNoWinningBid        = -32047
	codeHasWinningBid       = -32048
	codeNotMatured          = -32049
	codeWrongCaller         = -32050
	codeInsufficientFunds   = -32051
	codeModulePaused        = -32052
	codeValidationFailed    = -32060
)

// Server exposes the node over JSON-RPC 2.0 with a websocket event stream, a
// health probe, and prometheus metrics.
type Server struct {
	node    *core.Node
	logger  *slog.Logger
	auth    *authenticator
	limiter *ipLimiter
	metrics *observability.RPCMetrics
}

// Options configures the RPC server's authentication and throttling.
type Options struct {
	AuthToken         string
	JWTSecret         string
	RequestsPerMinute float64
	Burst             int
}

// NewServer builds an RPC server around the node.
func NewServer(node *core.Node, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:    node,
		logger:  logger.With("component", "rpc"),
		auth:    newAuthenticator(opts.AuthToken, opts.JWTSecret),
		limiter: newIPLimiter(opts.RequestsPerMinute, opts.Burst),
		metrics: observability.Metrics(),
	}
}

// Router assembles the HTTP routes served by the daemon.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"height": s.node.Height(),
	})
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      any               `json:"id"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id any, code int, message string) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

func writeResult(w http.ResponseWriter, id any, result any) {
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	clientIP := clientAddr(r)
	if !s.limiter.allow(clientIP) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil || int64(len(body)) > maxRequestBytes {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "request body unreadable or too large")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request")
		return
	}

	if mutatingMethods[req.Method] {
		if err := s.auth.authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error())
			s.metrics.ObserveRequest(req.Method, "unauthorized", 0)
			return
		}
	}

	started := time.Now()
	result, rpcErr := s.dispatch(&req)
	elapsed := time.Since(started).Seconds()
	if rpcErr != nil {
		s.metrics.ObserveRequest(req.Method, "error", elapsed)
		s.logger.Info("rpc request failed", "method", req.Method, "code", rpcErr.Code, "err", rpcErr.Message)
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	s.metrics.ObserveRequest(req.Method, "ok", elapsed)
	writeResult(w, req.ID, result)
}

var mutatingMethods = map[string]bool{
	"loan_create":        true,
	"loan_placeBid":      true,
	"loan_settle":        true,
	"loan_repay":         true,
	"loan_claimDefault":  true,
	"loan_cancelExpired": true,
	"position_transfer":  true,
	"bank_faucet":        true,
	"chain_advance":      true,
}

func (s *Server) dispatch(req *rpcRequest) (any, *rpcError) {
	switch req.Method {
	case "loan_create":
		return s.loanCreate(req.Params)
	case "loan_placeBid":
		return s.loanPlaceBid(req.Params)
	case "loan_settle":
		return s.loanSettle(req.Params)
	case "loan_repay":
		return s.loanRepay(req.Params)
	case "loan_claimDefault":
		return s.loanClaimDefault(req.Params)
	case "loan_cancelExpired":
		return s.loanCancelExpired(req.Params)
	case "loan_get":
		return s.loanGet(req.Params)
	case "loan_getBid":
		return s.loanGetBid(req.Params)
	case "loan_getWinningBid":
		return s.loanGetWinningBid(req.Params)
	case "loan_count":
		return s.loanCount()
	case "position_get":
		return s.positionGet(req.Params)
	case "position_transfer":
		return s.positionTransfer(req.Params)
	case "bank_balance":
		return s.bankBalance(req.Params)
	case "bank_escrowBalance":
		return s.bankEscrowBalance(req.Params)
	case "bank_assets":
		return s.bankAssets()
	case "bank_faucet":
		return s.bankFaucet(req.Params)
	case "chain_height":
		return s.chainHeight()
	case "chain_advance":
		return s.chainAdvance(req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// engineError maps engine failures onto the stable JSON-RPC code space so
// automated clients can branch on the exact rule violated.
func engineError(err error) *rpcError {
	code := codeServerError
	switch {
	case errors.Is(err, auction.ErrLoanNotFound):
		code = codeLoanNotFound
	case errors.Is(err, auction.ErrInvalidLoanStatus):
		code = codeInvalidLoanStatus
	case errors.Is(err, auction.ErrAuctionEnded):
		code = codeAuctionEnded
	case errors.Is(err, auction.ErrExceedsMaxRepayment):
		code = codeExceedsMaxRepayment
	case errors.Is(err, auction.ErrBidHasNoInterest):
		code = codeBidHasNoInterest
	case errors.Is(err, auction.ErrNotBetterBid):
		code = codeNotBetterBid
	case errors.Is(err, auction.ErrAuctionOpen):
		code = codeAuctionOpen
	case errors.Is(err, auction.ErrNoWinningBid):
		code = codeNoWinningBid
	case errors.Is(err, auction.ErrHasWinningBid):
		code = codeHasWinningBid
	case errors.Is(err, auction.ErrNotMatured):
		code = codeNotMatured
	case errors.Is(err, auction.ErrNotBorrower), errors.Is(err, auction.ErrNotLender), errors.Is(err, positions.ErrNotOwner):
		code = codeWrongCaller
	case errors.Is(err, custody.ErrInsufficientBalance):
		code = codeInsufficientFunds
	case errors.Is(err, nativecommon.ErrModulePaused):
		code = codeModulePaused
	case errors.Is(err, auction.ErrSameAsset),
		errors.Is(err, auction.ErrUnsupportedAsset),
		errors.Is(err, auction.ErrNoInterestRoom),
		errors.Is(err, auction.ErrDurationBounds),
		errors.Is(err, auction.ErrAuctionTooShort),
		errors.Is(err, auction.ErrBelowMinUnit),
		errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, custody.ErrUnknownAsset),
		errors.Is(err, custody.ErrInvalidAmount):
		code = codeValidationFailed
	}
	return &rpcError{Code: code, Message: err.Error()}
}

func decodeParams(params []json.RawMessage, out any) *rpcError {
	if len(params) != 1 {
		return &rpcError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parseAddress(value, field string) (crypto.Address, *rpcError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s address: %v", field, err)}
	}
	return addr, nil
}

func parseAmount(value, field string) (*big.Int, *rpcError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s amount", field)}
	}
	return amount, nil
}

func clientAddr(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
