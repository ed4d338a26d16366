package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hyli-org/hyliquid-sub000/pkg/actions"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
	"github.com/hyli-org/hyliquid-sub000/pkg/events"
	"github.com/hyli-org/hyliquid-sub000/pkg/metrics"
	"github.com/hyli-org/hyliquid-sub000/pkg/smt"
	"github.com/hyli-org/hyliquid-sub000/pkg/storage"
)

// Server is the ingest/query HTTP surface: POST /api/v1/actions runs one
// action through the dispatcher (this repo's execute(calldata) entry
// point), the GET endpoints read the live FullState, and /ws fans out the
// resulting events. Every write goes through a single mutex — the execution
// core is a single-writer design (spec.md §1), and an HTTP server fronting
// it must serialize concurrent requests the same way a single in-process
// caller would.
type Server struct {
	mu         sync.Mutex
	dispatcher *actions.Dispatcher
	log        *storage.EventLog
	metrics    *metrics.Collector
	nextBatch  uint64

	router *mux.Router
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewServer(dispatcher *actions.Dispatcher, eventLog *storage.EventLog, logger *zap.SugaredLogger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		log:        eventLog,
		metrics:    metrics.NewCollector(),
		router:     mux.NewRouter(),
		hub:        NewHub(),
		logger:     logger,
	}
	if latest, ok, err := eventLog.LatestIndex(); err == nil && ok {
		s.nextBatch = latest + 1
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/actions", s.handleSubmitAction).Methods("POST")
	api.HandleFunc("/pairs/{base}/{quote}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/users/{identity}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{identity}/balances/{symbol}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/commitment", s.handleGetCommitment).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
}

// Start runs the HTTP+WebSocket server on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	s.logger.Infow("api: server starting", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errs.New(errs.Validation, "invalid JSON body: %v", err))
		return
	}

	action, err := toAction(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var private *actions.PermissionedPrivateInput
	if action.Kind.Permissioned() {
		secret, err := hex.DecodeString(req.SecretHex)
		if err != nil {
			respondError(w, http.StatusBadRequest, errs.Validationf("invalid secret_hex: %v", err))
			return
		}
		private = &actions.PermissionedPrivateInput{Secret: secret}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result, err := s.dispatcher.Execute(action, private, false)
	if err != nil {
		s.metrics.RecordAction(action.Kind.String(), time.Since(start), 0, err)
		respondError(w, statusFor(err), err)
		return
	}

	batchIndex := s.nextBatch
	commitment := s.dispatcher.State.Commit().Hash()
	if err := s.log.Append(batchIndex, action, result.Events, commitment); err != nil {
		s.logger.Errorw("api: failed to append event log entry", "batch_index", batchIndex, "error", err)
		respondError(w, http.StatusInternalServerError, errs.Internalf("event log append failed: %v", err))
		return
	}
	s.nextBatch++
	s.metrics.SetCommitmentHeight(batchIndex)

	fills := 0
	for _, e := range result.Events {
		if (e.Kind == events.KindOrderExecuted || e.Kind == events.KindOrderUpdate) && !e.IsSelfMatch() {
			fills++
		}
	}
	s.metrics.RecordAction(action.Kind.String(), time.Since(start), fills, nil)

	s.broadcastEvents(batchIndex, result.Events)

	kinds := make([]string, len(result.Events))
	for i, e := range result.Events {
		kinds[i] = eventKindName(e.Kind)
	}
	resp := ActionResponse{
		BatchIndex:    batchIndex,
		CommitmentHex: hex.EncodeToString(commitment[:]),
		EventKinds:    kinds,
	}
	if !result.UserKey.IsZero() {
		resp.UserKeyHex = hex.EncodeToString(result.UserKey[:])
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pair := entities.Pair{Base: entities.Symbol(vars["base"]), Quote: entities.Symbol(vars["quote"])}

	s.mu.Lock()
	bids, asks := s.dispatcher.State.Execute.Manager().Snapshot(pair)
	s.mu.Unlock()

	resp := OrderbookView{Base: vars["base"], Quote: vars["quote"]}
	for _, l := range bids {
		resp.Bids = append(resp.Bids, PriceLevelView{Price: l.Price, Quantity: l.Quantity})
	}
	for _, l := range asks {
		resp.Asks = append(resp.Asks, PriceLevelView{Price: l.Price, Quantity: l.Quantity})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identity := entities.Identity(mux.Vars(r)["identity"])

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.dispatcher.State.Execute.NonceOf(identity)
	_, key := s.dispatcher.State.Execute.User(identity)
	u, _ := s.dispatcher.State.Execute.UserByKey(key)

	respondJSON(w, http.StatusOK, UserView{
		Identity:        string(identity),
		UserKeyHex:      hex.EncodeToString(key[:]),
		Nonce:           nonce,
		SessionKeyCount: len(u.SessionKeys),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity := entities.Identity(vars["identity"])
	symbol := entities.Symbol(vars["symbol"])

	s.mu.Lock()
	_, key := s.dispatcher.State.Execute.User(identity)
	amount := s.dispatcher.State.Execute.Balance(symbol, key)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, BalanceView{Identity: string(identity), Symbol: string(symbol), Amount: amount})
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	commitment := s.dispatcher.State.Commit().Hash()
	batch := s.nextBatch
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, CommitmentView{
		BatchIndex:    batch,
		CommitmentHex: hex.EncodeToString(commitment[:]),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) broadcastEvents(batchIndex uint64, evs []events.Event) {
	for _, e := range evs {
		view := EventView{
			Type:       "event",
			Kind:       eventKindName(e.Kind),
			OrderID:    string(e.OrderID),
			User:       string(e.User),
			Symbol:     string(e.Symbol),
			NewAmount:  e.NewAmount,
			BatchIndex: batchIndex,
		}
		if e.Pair.Base != "" {
			view.Pair = string(e.Pair.Base) + "/" + string(e.Pair.Quote)
		}
		s.hub.BroadcastToChannel("events", view)
	}
}

// ---- action DTO mapping ----

func toAction(req *ActionRequest) (*actions.OrderbookAction, error) {
	a := &actions.OrderbookAction{
		Identity: entities.Identity(req.Identity),
		Nonce:    req.Nonce,
	}

	switch req.Kind {
	case "identify":
		a.Kind = actions.KindIdentify

	case "add_session_key":
		a.Kind = actions.KindAddSessionKey
		pub, err := hex.DecodeString(req.PublicKeyHex)
		if err != nil {
			return nil, errs.Validationf("invalid public_key_hex: %v", err)
		}
		a.PublicKey = pub

	case "create_pair":
		a.Kind = actions.KindCreatePair
		a.Pair = entities.Pair{Base: entities.Symbol(req.Base), Quote: entities.Symbol(req.Quote)}
		a.PairInfo = entities.PairInfo{
			Base:  entities.AssetInfo{Scale: req.BaseScale, ContractName: req.BaseContract},
			Quote: entities.AssetInfo{Scale: req.QuoteScale, ContractName: req.QuoteContract},
		}

	case "deposit":
		a.Kind = actions.KindDeposit
		a.Symbol = entities.Symbol(req.Symbol)
		a.Amount = req.Amount
		a.ChainRef = req.ChainRef

	case "create_order":
		a.Kind = actions.KindCreateOrder
		typ, err := parseOrderType(req.OrderType)
		if err != nil {
			return nil, err
		}
		side, err := parseSide(req.Side)
		if err != nil {
			return nil, err
		}
		sig, err := hex.DecodeString(req.SignatureHex)
		if err != nil {
			return nil, errs.Validationf("invalid signature_hex: %v", err)
		}
		a.Order = &entities.Order{
			OrderID:  entities.OrderID(req.OrderID),
			Type:     typ,
			Side:     side,
			Price:    req.Price,
			Pair:     entities.Pair{Base: entities.Symbol(req.Base), Quote: entities.Symbol(req.Quote)},
			Quantity: req.Quantity,
		}
		a.Signature = sig

	case "cancel":
		a.Kind = actions.KindCancel
		a.OrderID = entities.OrderID(req.CancelOrderID)
		sig, err := hex.DecodeString(req.SignatureHex)
		if err != nil {
			return nil, errs.Validationf("invalid signature_hex: %v", err)
		}
		a.Signature = sig

	case "withdraw":
		a.Kind = actions.KindWithdraw
		a.Symbol = entities.Symbol(req.Symbol)
		a.Amount = req.Amount
		a.Destination = req.Destination
		sig, err := hex.DecodeString(req.SignatureHex)
		if err != nil {
			return nil, errs.Validationf("invalid signature_hex: %v", err)
		}
		a.Signature = sig

	case "escape":
		a.Kind = actions.KindEscape
		userKey, err := decodeH256(req.UserKeyHex)
		if err != nil {
			return nil, errs.Validationf("invalid user_key_hex: %v", err)
		}
		leafHash, err := decodeH256(req.LeafHashHex)
		if err != nil {
			return nil, errs.Validationf("invalid leaf_hash_hex: %v", err)
		}
		proofBytes, err := hex.DecodeString(req.ProofHex)
		if err != nil {
			return nil, errs.Validationf("invalid proof_hex: %v", err)
		}
		proof, err := smt.DeserializeMultiProof(proofBytes)
		if err != nil {
			return nil, errs.Validationf("invalid proof encoding: %v", err)
		}
		a.UserKey = userKey
		a.LeafHash = leafHash
		a.Proof = proof

	default:
		return nil, errs.Validationf("unknown action kind %q", req.Kind)
	}
	return a, nil
}

func decodeH256(s string) (entities.H256, error) {
	var out entities.H256
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

func parseOrderType(s string) (entities.OrderType, error) {
	switch s {
	case "limit":
		return entities.OrderTypeLimit, nil
	case "market":
		return entities.OrderTypeMarket, nil
	case "stop":
		return entities.OrderTypeStop, nil
	case "stop_limit":
		return entities.OrderTypeStopLimit, nil
	case "stop_market":
		return entities.OrderTypeStopMarket, nil
	default:
		return 0, errs.Validationf("unknown order_type %q", s)
	}
}

func parseSide(s string) (entities.Side, error) {
	switch s {
	case "bid":
		return entities.SideBid, nil
	case "ask":
		return entities.SideAsk, nil
	default:
		return 0, errs.Validationf("unknown side %q", s)
	}
}

func eventKindName(k events.Kind) string {
	switch k {
	case events.KindOrderCreated:
		return "order_created"
	case events.KindOrderCancelled:
		return "order_cancelled"
	case events.KindOrderExecuted:
		return "order_executed"
	case events.KindOrderUpdate:
		return "order_update"
	case events.KindPairCreated:
		return "pair_created"
	case events.KindSessionKeyAdded:
		return "session_key_added"
	case events.KindBalanceUpdated:
		return "balance_updated"
	case events.KindNonceIncremented:
		return "nonce_incremented"
	default:
		return "unknown"
	}
}

// ---- response helpers ----

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, ErrorResponse{Kind: errs.KindOf(err).String(), Message: err.Error()})
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.Authentication:
		return http.StatusUnauthorized
	case errs.PreconditionViolation:
		return http.StatusConflict
	case errs.Arithmetic:
		return http.StatusUnprocessableEntity
	case errs.ProofFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
