package http

import (
	"net/http"
	"time"

	"fambudget/internal/core"
)

type ruleRequest struct {
	FamilyID    int64  `json:"family_id"`
	CategoryID  int64  `json:"category_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	DayOfMonth  int    `json:"day_of_month"`
	DayOfWeek   *int   `json:"day_of_week"`
}

// toRule converts the wire form into a domain rule. Amounts arrive as decimal
// strings ("12.34" or "12,34") and dates as YYYY-MM-DD.
func (req ruleRequest) toRule(userID int64) (core.RecurringRule, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.RecurringRule{}, err
	}
	// start_date may be omitted on updates; the service keeps the stored one.
	var start core.Date
	if req.StartDate != "" {
		if start, err = core.ParseDate(req.StartDate); err != nil {
			return core.RecurringRule{}, err
		}
	}
	var end core.Date
	if req.EndDate != "" {
		if end, err = core.ParseDate(req.EndDate); err != nil {
			return core.RecurringRule{}, err
		}
	}
	dayOfWeek := -1
	if req.DayOfWeek != nil {
		dayOfWeek = *req.DayOfWeek
	}
	return core.RecurringRule{
		FamilyID:    req.FamilyID,
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Kind:        core.Kind(req.Kind),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(req.Description),
		Frequency:   core.Frequency(req.Frequency),
		StartDate:   start,
		EndDate:     end,
		DayOfMonth:  req.DayOfMonth,
		DayOfWeek:   dayOfWeek,
	}, nil
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRule(w, r)
	case http.MethodGet:
		s.listRules(w, r)
	case http.MethodPut:
		s.updateRule(w, r)
	case http.MethodDelete:
		s.deleteRule(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	var req ruleRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rule, err := req.toRule(uid)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	if !s.requireMember(w, r, rule.FamilyID, uid) {
		return
	}
	created, err := s.rules.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	familyID, err := queryID(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !s.requireMember(w, r, familyID, uid) {
		return
	}

	if r.URL.Query().Get("id") != "" {
		id, err := queryID(r, "id")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		rule, err := s.rules.GetRule(r.Context(), familyID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
		return
	}

	rules, err := s.rules.ListRules(r.Context(), familyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	id, err := queryID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var req ruleRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rule, err := req.toRule(uid)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	if !s.requireMember(w, r, rule.FamilyID, uid) {
		return
	}
	updated, err := s.rules.UpdateRule(r.Context(), rule.FamilyID, id, rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	familyID, err := queryID(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	id, err := queryID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !s.requireMember(w, r, familyID, uid) {
		return
	}
	if err := s.rules.DeleteRule(r.Context(), familyID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecurringActive pauses or resumes a rule without touching its
// schedule.
func (s *Server) handleRecurringActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	var req struct {
		FamilyID int64 `json:"family_id"`
		ID       int64 `json:"id"`
		Active   bool  `json:"is_active"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !s.requireMember(w, r, req.FamilyID, uid) {
		return
	}
	if err := s.rules.SetActive(r.Context(), req.FamilyID, req.ID, req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_active": req.Active})
}

// handleRecurringProcess materializes all due rules for a family. The
// optional as_of body field (YYYY-MM-DD) defaults to today; it exists so
// operators can replay or backfill a specific day.
func (s *Server) handleRecurringProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	var req struct {
		FamilyID int64  `json:"family_id"`
		AsOf     string `json:"as_of"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !s.requireMember(w, r, req.FamilyID, uid) {
		return
	}

	asOf := core.DateOf(time.Now())
	if req.AsOf != "" {
		if asOf, err = core.ParseDate(req.AsOf); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
	}

	result, err := s.processor.ProcessDueRules(r.Context(), req.FamilyID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
