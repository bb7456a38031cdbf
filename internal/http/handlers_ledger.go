package http

import (
	"net/http"

	"fambudget/internal/core"
)

type transactionRequest struct {
	FamilyID    int64  `json:"family_id"`
	CategoryID  int64  `json:"category_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.createTransaction(w, r, uid)
	case http.MethodGet:
		s.listTransactions(w, r, uid)
	case http.MethodDelete:
		s.deleteTransaction(w, r, uid)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request, uid int64) {
	var req transactionRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	t := core.Transaction{
		FamilyID:    req.FamilyID,
		UserID:      uid,
		CategoryID:  req.CategoryID,
		Kind:        core.Kind(req.Kind),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(req.Description),
		Date:        date,
	}
	if !s.requireMember(w, r, t.FamilyID, uid) {
		return
	}
	created, err := s.ledger.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request, uid int64) {
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
		t, err := s.ledger.GetTransaction(r.Context(), familyID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
		return
	}

	year, month := parseYearMonth(r)
	transactions, err := s.ledger.ListMonth(r.Context(), familyID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request, uid int64) {
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
	if err := s.ledger.DeleteTransaction(r.Context(), familyID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
