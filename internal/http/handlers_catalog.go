package http

import (
	"net/http"

	"fambudget/internal/core"
)

// requireMember checks that the acting user belongs to the family and writes
// the error response itself when they do not. Returns true when access is
// allowed.
func (s *Server) requireMember(w http.ResponseWriter, r *http.Request, familyID, userID int64) bool {
	ok, err := s.repo.IsMember(r.Context(), familyID, userID)
	if err != nil {
		writeError(w, r, err)
		return false
	}
	if !ok {
		writeError(w, r, core.ErrNotFamilyMember)
		return false
	}
	return true
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	u := core.User{Name: sanitizeInput(req.Name), Email: sanitizeInput(req.Email)}
	if err := u.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.repo.CreateUser(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = id
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
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
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, r, core.ErrEmptyName)
		return
	}
	id, err := s.repo.CreateFamily(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The creator joins their own family immediately
	if err := s.repo.AddMember(r.Context(), id, uid); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, core.Family{ID: id, Name: name})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	switch r.Method {
	case http.MethodGet:
		familyID, err := queryID(r, "family_id")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if !s.requireMember(w, r, familyID, uid) {
			return
		}
		members, err := s.repo.ListMembers(r.Context(), familyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, members)

	case http.MethodPost, http.MethodDelete:
		var req struct {
			FamilyID int64 `json:"family_id"`
			UserID   int64 `json:"user_id"`
		}
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if !s.requireMember(w, r, req.FamilyID, uid) {
			return
		}
		if r.Method == http.MethodPost {
			err = s.repo.AddMember(r.Context(), req.FamilyID, req.UserID)
		} else {
			err = s.repo.RemoveMember(r.Context(), req.FamilyID, req.UserID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
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
			Kind     string `json:"kind"`
		}
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		c := core.Category{FamilyID: req.FamilyID, Name: sanitizeInput(req.Name), Kind: core.Kind(req.Kind)}
		if err := c.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
		if !s.requireMember(w, r, c.FamilyID, uid) {
			return
		}
		id, err := s.repo.CreateCategory(r.Context(), c)
		if err != nil {
			writeError(w, r, err)
			return
		}
		c.ID = id
		writeJSON(w, http.StatusCreated, c)

	case http.MethodGet:
		familyID, err := queryID(r, "family_id")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if !s.requireMember(w, r, familyID, uid) {
			return
		}
		categories, err := s.repo.ListCategories(r.Context(), familyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)

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
		if err := s.repo.DeleteCategory(r.Context(), familyID, id); err != nil {
			writeError(w, r, err)
			return
		}
		s.rules.InvalidateCategory(familyID, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}
