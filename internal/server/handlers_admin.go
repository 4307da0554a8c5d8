package server

import (
	"net/http"
	"strings"

	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers(identity)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users, "count": len(users)})
}

func (s *Server) handleAdminUserSubtree(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" || len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]
	switch parts[1] {
	case "status":
		s.handleAdminUserStatus(w, r, identity, userID)
	case "roles":
		s.handleAdminUserRoles(w, r, identity, userID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleWriterRequests(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	requests, err := s.app.ListWriterRequests(identity)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": requests, "count": len(requests)})
}

func (s *Server) handleWriterRequestSubtree(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/writer-requests/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" || len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var profile domain.Profile
	var err error
	switch parts[1] {
	case "approve":
		profile, err = s.app.ApproveWriter(r.Context(), identity, parts[0])
	case "reject":
		profile, err = s.app.RejectWriter(r.Context(), identity, parts[0])
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request, identity authz.Identity, userID string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.SetUserStatus(identity, userID, domain.UserStatus(strings.ToLower(strings.TrimSpace(req.Status)))); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleAdminUserRoles(w http.ResponseWriter, r *http.Request, identity authz.Identity, userID string) {
	switch r.Method {
	case http.MethodGet:
		roles, err := s.app.ListUserRoles(r.Context(), identity, userID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": roles, "count": len(roles)})
	case http.MethodPost:
		var req roleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.app.AssignRole(r.Context(), identity, userID, req.Role); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		var req roleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.app.RevokeRole(r.Context(), identity, userID, req.Role); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
