package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"storyconnect/pkg/ai"
	"storyconnect/pkg/authz"
)

type progressRequest struct {
	BookID     string `json:"bookId"`
	ChapterID  string `json:"chapterId"`
	Percentage int    `json:"percentage"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		progress, err := s.app.ListProgress(identity)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": progress, "count": len(progress)})
	case http.MethodPut:
		var req progressRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.app.SaveProgress(identity, req.BookID, req.ChapterID, req.Percentage); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

type bookmarkRequest struct {
	BookID    string `json:"bookId"`
	ChapterID string `json:"chapterId"`
	Note      string `json:"note"`
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		bookmarks, err := s.app.ListBookmarks(identity, r.URL.Query().Get("bookId"))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": bookmarks, "count": len(bookmarks)})
	case http.MethodPost:
		var req bookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		bookmark, err := s.app.AddBookmark(identity, req.BookID, req.ChapterID, req.Note)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, bookmark)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookmarkByID(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	chapterID, ok := lastSegment(r.URL.Path, "/me/bookmarks/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.RemoveBookmark(identity, chapterID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type favoriteRequest struct {
	BookID string `json:"bookId"`
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		favorites, err := s.app.ListFavorites(identity)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": favorites, "count": len(favorites)})
	case http.MethodPost:
		var req favoriteRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.app.AddFavorite(identity, req.BookID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFavoriteByID(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	bookID, ok := lastSegment(r.URL.Path, "/me/favorites/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.RemoveFavorite(identity, bookID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type followRequest struct {
	AuthorID string `json:"authorId"`
}

func (s *Server) handleFollows(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req followRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.FollowAuthor(identity, req.AuthorID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFollowByID(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	authorID, ok := lastSegment(r.URL.Path, "/me/follows/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.UnfollowAuthor(identity, authorID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	purchases, err := s.app.ListMyPurchases(identity)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": purchases, "count": len(purchases)})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := s.app.ListNotifications(identity, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": notifications, "count": len(notifications)})
}

func (s *Server) handleNotificationByID(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/me/notifications/")
	id, found := strings.CutSuffix(path, "/read")
	if !found || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.MarkNotificationRead(identity, id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "avatar must be an image")
		return
	}
	if r.ContentLength <= 0 || r.ContentLength > maxCoverBytes {
		writeError(w, http.StatusBadRequest, "avatar size must be known and at most 5 MiB")
		return
	}
	profile, err := s.app.SetAvatar(r.Context(), identity.User.ID, io.LimitReader(r.Body, maxCoverBytes), r.ContentLength, contentType)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	avatarURL, err := s.app.AvatarURL(r.Context(), profile)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "avatarUrl": avatarURL})
}

type assistRequest struct {
	Mode   string `json:"mode"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.assistantLimiter, "too many assistant requests") {
		return
	}
	var req assistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, ok := ai.ParseMode(req.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown assistant mode")
		return
	}
	reply, err := s.app.Assist(r.Context(), identity, mode, req.Prompt)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func lastSegment(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
