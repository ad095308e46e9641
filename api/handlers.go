package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"argus/core"
	"argus/detect"
	"argus/ingest"
	"argus/storage"

	"github.com/gorilla/mux"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

// RuleTestRequest submits a rule definition plus JSONL logs for offline
// matching. Events is the raw JSONL document, one record per line.
type RuleTestRequest struct {
	Rule   *core.RuleDefinition `json:"rule" validate:"required"`
	Events string               `json:"events" validate:"required"`
}

// StoredRuleTestRequest submits JSONL logs against a stored rule.
type StoredRuleTestRequest struct {
	Events string `json:"events" validate:"required"`
}

// RuleTestResponse reports the outcome of a rule test.
type RuleTestResponse struct {
	RuleID           string               `json:"rule_id"`
	TotalEvents      int                  `json:"total_events"`
	MatchCount       int                  `json:"match_count"`
	Matches          []core.SequenceMatch `json:"matches"`
	EvaluationTimeMs float64              `json:"evaluation_time_ms"`
}

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

func (a *API) respondError(w http.ResponseWriter, message string, statusCode int) {
	a.respondJSON(w, errorResponse{Error: message}, statusCode)
}

// respondStoreError maps rule store sentinels onto HTTP statuses.
func (a *API) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrRuleNotFound):
		a.respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrDuplicateRule):
		a.respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrInvalidRuleID):
		a.respondError(w, err.Error(), http.StatusBadRequest)
	default:
		a.logger.Errorw("Rule store failure", "error", err)
		a.respondError(w, "internal error", http.StatusInternalServerError)
	}
}

// respondValidationError reports every violation of a rejected rule.
func (a *API) respondValidationError(w http.ResponseWriter, verr *detect.ValidationError) {
	a.respondJSON(w, errorResponse{
		Error:      verr.Error(),
		Violations: verr.Violations,
	}, http.StatusBadRequest)
}

func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (a *API) listRules(w http.ResponseWriter, r *http.Request) {
	defs, err := a.rules.ListRules()
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if defs == nil {
		defs = []*core.RuleDefinition{}
	}
	a.respondJSON(w, defs, http.StatusOK)
}

func (a *API) getRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	def, err := a.rules.GetRule(id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	a.respondJSON(w, def, http.StatusOK)
}

func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	var def core.RuleDefinition
	if err := a.decodeJSONBody(w, r, &def); err != nil {
		a.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !a.compileOrReject(w, def) {
		return
	}
	if err := a.rules.CreateRule(&def); err != nil {
		a.respondStoreError(w, err)
		return
	}
	a.respondJSON(w, def, http.StatusCreated)
}

func (a *API) updateRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var def core.RuleDefinition
	if err := a.decodeJSONBody(w, r, &def); err != nil {
		a.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !a.compileOrReject(w, def) {
		return
	}
	if err := a.rules.UpdateRule(id, &def); err != nil {
		a.respondStoreError(w, err)
		return
	}
	a.respondJSON(w, def, http.StatusOK)
}

func (a *API) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.rules.DeleteRule(id); err != nil {
		a.respondStoreError(w, err)
		return
	}
	a.respondJSON(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

// compileOrReject validates a definition by compiling it, answering 400 with
// the full violation list on failure. Stored rules are always compilable.
func (a *API) compileOrReject(w http.ResponseWriter, def core.RuleDefinition) bool {
	if _, err := detect.CompileRule(def, a.cache); err != nil {
		var verr *detect.ValidationError
		if errors.As(err, &verr) {
			a.respondValidationError(w, verr)
		} else {
			a.respondError(w, err.Error(), http.StatusBadRequest)
		}
		return false
	}
	return true
}

func (a *API) testRule(w http.ResponseWriter, r *http.Request) {
	var req RuleTestRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		a.respondError(w, "rule and events are required", http.StatusBadRequest)
		return
	}
	a.runRuleTest(w, *req.Rule, req.Events)
}

func (a *API) testStoredRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req StoredRuleTestRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		a.respondError(w, "events are required", http.StatusBadRequest)
		return
	}
	def, err := a.rules.GetRule(id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	a.runRuleTest(w, *def, req.Events)
}

func (a *API) runRuleTest(w http.ResponseWriter, def core.RuleDefinition, eventsJSONL string) {
	rule, err := detect.CompileRule(def, a.cache)
	if err != nil {
		var verr *detect.ValidationError
		if errors.As(err, &verr) {
			a.respondValidationError(w, verr)
		} else {
			a.respondError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	parser := ingest.NewParser(a.config.Matcher.MaxTestEvents)
	events, err := parser.ParseEvents(strings.NewReader(eventsJSONL))
	if err != nil {
		a.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	matches := a.matcher.Match(rule, events)
	elapsed := time.Since(start)

	a.respondJSON(w, RuleTestResponse{
		RuleID:           rule.ID,
		TotalEvents:      len(events),
		MatchCount:       len(matches),
		Matches:          matches,
		EvaluationTimeMs: float64(elapsed.Microseconds()) / 1000.0,
	}, http.StatusOK)
}
