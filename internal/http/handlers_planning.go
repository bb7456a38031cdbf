package http

import (
	"net/http"

	"fambudget/internal/core"
)

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			FamilyID   int64  `json:"family_id"`
			CategoryID int64  `json:"category_id"`
			Year       int    `json:"year"`
			Month      int    `json:"month"`
			Limit      string `json:"limit"`
		}
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		cents, err := core.ParseDecimalToCents(req.Limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		b := core.Budget{
			FamilyID:   req.FamilyID,
			CategoryID: req.CategoryID,
			Year:       req.Year,
			Month:      req.Month,
			Limit:      core.Money{Cents: cents},
		}
		if err := b.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
		if !s.requireMember(w, r, b.FamilyID, uid) {
			return
		}
		id, err := s.repo.CreateBudget(r.Context(), b)
		if err != nil {
			writeError(w, r, err)
			return
		}
		b.ID = id
		writeJSON(w, http.StatusCreated, b)

	case http.MethodGet:
		familyID, err := queryID(r, "family_id")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if !s.requireMember(w, r, familyID, uid) {
			return
		}
		year, month := parseYearMonth(r)
		budgets, err := s.repo.ListBudgets(r.Context(), familyID, year, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, budgets)

	case http.MethodPut:
		var req struct {
			FamilyID int64  `json:"family_id"`
			ID       int64  `json:"id"`
			Limit    string `json:"limit"`
		}
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		cents, err := core.ParseDecimalToCents(req.Limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !s.requireMember(w, r, req.FamilyID, uid) {
			return
		}
		if err := s.repo.UpdateBudget(r.Context(), req.FamilyID, req.ID, core.Money{Cents: cents}); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
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
		if err := s.repo.DeleteBudget(r.Context(), familyID, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			FamilyID int64  `json:"family_id"`
			Name     string `json:"name"`
			Target   string `json:"target"`
			Deadline string `json:"deadline"`
		}
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		cents, err := core.ParseDecimalToCents(req.Target)
		if err != nil {
			writeError(w, r, err)
			return
		}
		g := core.Goal{
			FamilyID: req.FamilyID,
			Name:     sanitizeInput(req.Name),
			Target:   core.Money{Cents: cents},
		}
		if req.Deadline != "" {
			if g.Deadline, err = core.ParseDate(req.Deadline); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
				return
			}
		}
		if err := g.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
		if !s.requireMember(w, r, g.FamilyID, uid) {
			return
		}
		id, err := s.repo.CreateGoal(r.Context(), g)
		if err != nil {
			writeError(w, r, err)
			return
		}
		g.ID = id
		writeJSON(w, http.StatusCreated, g)

	case http.MethodGet:
		familyID, err := queryID(r, "family_id")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if !s.requireMember(w, r, familyID, uid) {
			return
		}
		goals, err := s.repo.ListGoals(r.Context(), familyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, goals)

	case http.MethodDelete:
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
		if err := s.repo.DeleteGoal(r.Context(), familyID, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

// handleGoalContribute records a contribution towards a savings goal.
func (s *Server) handleGoalContribute(w http.ResponseWriter, r *http.Request) {
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
		ID       int64  `json:"id"`
		Amount   string `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !s.requireMember(w, r, req.FamilyID, uid) {
		return
	}
	if err := s.repo.AddToGoal(r.Context(), req.FamilyID, req.ID, core.Money{Cents: cents}); err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := s.repo.GetGoal(r.Context(), req.FamilyID, req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
