package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/trustmesh/backend/internal/engine"
)

// errorCode maps each named engine failure to a stable code string and an
// HTTP status. Collaborators surface the code verbatim.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, engine.ErrNotRegistered):
		return "NOT_REGISTERED", http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyRegistered):
		return "ALREADY_REGISTERED", http.StatusConflict
	case errors.Is(err, engine.ErrInvalidName):
		return "INVALID_NAME", http.StatusBadRequest
	case errors.Is(err, engine.ErrBelowMinimumStake):
		return "BELOW_MINIMUM_STAKE", http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientStake):
		return "INSUFFICIENT_STAKE", http.StatusConflict
	case errors.Is(err, engine.ErrNothingStaked):
		return "NOTHING_STAKED", http.StatusConflict
	case errors.Is(err, engine.ErrNoUnstakeRequested):
		return "NO_UNSTAKE_REQUESTED", http.StatusConflict
	case errors.Is(err, engine.ErrCooldownNotElapsed):
		return "COOLDOWN_NOT_ELAPSED", http.StatusConflict
	case errors.Is(err, engine.ErrDealNotFound):
		return "DEAL_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, engine.ErrDealNotActive):
		return "DEAL_NOT_ACTIVE", http.StatusConflict
	case errors.Is(err, engine.ErrNotAParty):
		return "NOT_A_PARTY", http.StatusForbidden
	case errors.Is(err, engine.ErrSelfDeal):
		return "SELF_DEAL", http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidAmount):
		return "INVALID_AMOUNT", http.StatusBadRequest
	case errors.Is(err, engine.ErrDealNotExpired):
		return "DEAL_NOT_EXPIRED", http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS", http.StatusPaymentRequired
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": err.Error(),
	})
}

// callerID extracts the verified caller identity supplied by the fronting
// identity layer.
func callerID(r *http.Request) (string, bool) {
	id := r.Header.Get("X-Agent-ID")
	return id, id != ""
}

func missingIdentity(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"code":  "MISSING_IDENTITY",
		"error": "X-Agent-ID header is required",
	})
}

// finish records operation metrics and refreshes the engine gauges.
func (s *Server) finish(op string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		if code, _ := errorCode(err); code == "INTERNAL" {
			result = "error"
		} else {
			result = "rejected"
		}
	}
	s.metrics.RecordOperation(op, result, time.Since(started).Seconds())
	s.metrics.UpdateEngineState(s.engine.AgentCount(), s.engine.DealCount(), s.engine.VaultHeld())
}

// agentView is the external representation of an agent profile.
type agentView struct {
	engine.Agent
	Reputation int `json:"reputation"`
}

func (s *Server) agentView(a engine.Agent) agentView {
	return agentView{Agent: a, Reputation: engine.Score(a)}
}

// ----------------------------------------------------------------
// Agents
// ----------------------------------------------------------------

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}
	err := s.engine.Register(caller, req.Name)
	s.finish("register", started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	a, _ := s.engine.GetAgent(caller)
	writeJSON(w, http.StatusCreated, s.agentView(a))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.engine.Agents()
	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, s.agentView(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["id"]
	a, ok := s.engine.GetAgent(identity)
	if !ok {
		writeError(w, engine.ErrNotRegistered)
		return
	}
	writeJSON(w, http.StatusOK, s.agentView(a))
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["id"]
	// Unregistered identities score 0, not an error.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity":   identity,
		"reputation": s.engine.GetReputation(identity),
	})
}

// ----------------------------------------------------------------
// Staking
// ----------------------------------------------------------------

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}
	err := s.engine.Stake(caller, req.Amount)
	s.finish("stake", started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	a, _ := s.engine.GetAgent(caller)
	writeJSON(w, http.StatusOK, s.agentView(a))
}

func (s *Server) handleRequestUnstake(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	err := s.engine.RequestUnstake(caller)
	s.finish("request_unstake", started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	a, _ := s.engine.GetAgent(caller)
	writeJSON(w, http.StatusOK, s.agentView(a))
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}
	err := s.engine.Unstake(caller, req.Amount)
	s.finish("unstake", started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	a, _ := s.engine.GetAgent(caller)
	writeJSON(w, http.StatusOK, s.agentView(a))
}

// ----------------------------------------------------------------
// Deals
// ----------------------------------------------------------------

func (s *Server) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	var req struct {
		Counterparty  string `json:"counterparty"`
		Amount        uint64 `json:"amount"`
		Description   string `json:"description"`
		ExpirySeconds int64  `json:"expiry_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}
	id, err := s.engine.CreateDeal(caller, req.Counterparty, req.Amount, req.Description,
		time.Duration(req.ExpirySeconds)*time.Second)
	s.finish("create_deal", started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	d, _ := s.engine.GetDeal(id)
	writeJSON(w, http.StatusCreated, d)
}

func dealIDFromPath(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	id, err := dealIDFromPath(r)
	if err != nil {
		writeError(w, engine.ErrDealNotFound)
		return
	}
	d, ok := s.engine.GetDeal(id)
	if !ok {
		writeError(w, engine.ErrDealNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) dealAction(w http.ResponseWriter, r *http.Request, op string, fn func(id uint64, caller string) error) {
	started := time.Now()
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	id, err := dealIDFromPath(r)
	if err != nil {
		writeError(w, engine.ErrDealNotFound)
		return
	}
	err = fn(id, caller)
	s.finish(op, started, err)
	if err != nil {
		writeError(w, err)
		return
	}
	d, _ := s.engine.GetDeal(id)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleConfirmDeal(w http.ResponseWriter, r *http.Request) {
	s.dealAction(w, r, "confirm_deal", s.engine.ConfirmDeal)
}

func (s *Server) handleDisputeDeal(w http.ResponseWriter, r *http.Request) {
	s.dealAction(w, r, "dispute_deal", s.engine.DisputeDeal)
}

func (s *Server) handleCancelExpiredDeal(w http.ResponseWriter, r *http.Request) {
	s.dealAction(w, r, "cancel_expired_deal", s.engine.CancelExpiredDeal)
}

// ----------------------------------------------------------------
// Dashboard feeds
// ----------------------------------------------------------------

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	agents := s.engine.Agents()
	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, s.agentView(a))
	}
	// Rank by reputation; registration order breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Reputation > out[j].Reputation
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	held, expected := s.engine.Conservation()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents":          s.engine.AgentCount(),
		"deals":           s.engine.DealCount(),
		"vault_held":      held,
		"ledger_expected": expected,
		"conserved":       held == expected,
	})
}

// ----------------------------------------------------------------
// Dev faucet
// ----------------------------------------------------------------

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		missingIdentity(w)
		return
	}
	var req struct {
		Identity string `json:"identity"`
		Amount   uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}
	if req.Identity == "" {
		req.Identity = caller
	}
	s.faucet.Credit(req.Identity, req.Amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity": req.Identity,
		"credited": req.Amount,
	})
}
