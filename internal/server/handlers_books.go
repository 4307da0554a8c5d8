package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storyconnect/internal/app"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/gate"
)

const maxCoverBytes = 5 << 20

type bookResponse struct {
	domain.Book
	CoverURL string `json:"coverUrl,omitempty"`
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, _ authz.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListPublishedBooks()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	items := make([]bookResponse, 0, len(books))
	for _, b := range books {
		coverURL, err := s.app.CoverURL(r.Context(), b)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		items = append(items, bookResponse{Book: b, CoverURL: coverURL})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleBookSubtree(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.SplitN(path, "/", 3)
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	bookID := parts[0]
	switch {
	case len(parts) == 1:
		s.handleBookByID(w, r, identity, bookID)
	case parts[1] == "chapters" && len(parts) == 2:
		s.handleChapterList(w, r, identity, bookID)
	case parts[1] == "chapters" && len(parts) == 3:
		s.handleChapterRead(w, r, identity, bookID, parts[2])
	case parts[1] == "reviews" && len(parts) == 2:
		s.handleBookReviews(w, r, identity, bookID)
	case parts[1] == "checkout" && len(parts) == 2:
		s.handleBookCheckout(w, r, identity, bookID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.GetBook(identity, bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	coverURL, err := s.app.CoverURL(r.Context(), book)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	owned, err := s.app.HasPurchased(identity, bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"book":      bookResponse{Book: book, CoverURL: coverURL},
		"purchased": owned,
	})
}

func (s *Server) handleChapterList(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summaries, err := s.app.ListChapters(identity.User.ID, bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": summaries, "count": len(summaries)})
}

func (s *Server) handleChapterRead(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID, rawNumber string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	number, err := strconv.Atoi(rawNumber)
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid chapter number")
		return
	}
	view, err := s.app.ReadChapter(identity.User.ID, bookID, number)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if view.Decision != gate.Allowed {
		// 402 tells a signed-in reader to buy; anonymous readers get
		// the sign-in hint instead.
		status := http.StatusPaymentRequired
		if view.Decision == gate.LockedNoAccount {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]string{"access": view.Decision.String()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  view.Decision.String(),
		"chapter": view.Chapter,
	})
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleBookReviews(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	switch r.Method {
	case http.MethodGet:
		reviews, err := s.app.ListReviews(bookID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": reviews, "count": len(reviews)})
	case http.MethodPost:
		if !identity.Authenticated() {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req reviewRequest
		if !decodeBody(w, r, &req) {
			return
		}
		review, err := s.app.SubmitReview(identity, bookID, req.Rating, req.Comment)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, review)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookCheckout(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !identity.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	session, err := s.app.CreateCheckout(r.Context(), identity, bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": session.ID, "url": session.URL})
}

// writer workspace

type bookRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Genre        string  `json:"genre"`
	Price        float64 `json:"price"`
	FreeChapters int     `json:"freeChapters"`
}

func (req bookRequest) input() app.BookInput {
	return app.BookInput{
		Title:        req.Title,
		Description:  req.Description,
		Genre:        req.Genre,
		Price:        req.Price,
		FreeChapters: req.FreeChapters,
	}
}

func (s *Server) handleMyBooks(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.ListMyBooks(identity)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
	case http.MethodPost:
		var req bookRequest
		if !decodeBody(w, r, &req) {
			return
		}
		book, err := s.app.CreateBook(identity, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, book)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMyBookSubtree(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/my/books/")
	parts := strings.SplitN(path, "/", 3)
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	bookID := parts[0]
	switch {
	case len(parts) == 1:
		s.handleMyBookByID(w, r, identity, bookID)
	case parts[1] == "publish" && len(parts) == 2:
		s.handleBookTransition(w, r, identity, bookID, s.app.PublishBook)
	case parts[1] == "archive" && len(parts) == 2:
		s.handleBookTransition(w, r, identity, bookID, s.app.ArchiveBook)
	case parts[1] == "cover" && len(parts) == 2:
		s.handleBookCover(w, r, identity, bookID)
	case parts[1] == "chapters" && len(parts) == 2:
		s.handleMyChapters(w, r, identity, bookID)
	case parts[1] == "chapters" && len(parts) == 3:
		s.handleMyChapterByID(w, r, identity, bookID, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleMyBookByID(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	switch r.Method {
	case http.MethodPut:
		var req bookRequest
		if !decodeBody(w, r, &req) {
			return
		}
		book, err := s.app.UpdateBook(identity, bookID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(identity, bookID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookTransition(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string, transition func(context.Context, authz.Identity, string) (domain.Book, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	book, err := transition(r.Context(), identity, bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleBookCover(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "cover must be an image")
		return
	}
	if r.ContentLength <= 0 || r.ContentLength > maxCoverBytes {
		writeError(w, http.StatusBadRequest, "cover size must be known and at most 5 MiB")
		return
	}
	book, err := s.app.SetCover(r.Context(), identity, bookID, io.LimitReader(r.Body, maxCoverBytes), r.ContentLength, contentType)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	coverURL, err := s.app.CoverURL(r.Context(), book)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{Book: book, CoverURL: coverURL})
}

type chapterRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
	IsFree  bool   `json:"isFree"`
}

func (req chapterRequest) input() app.ChapterInput {
	return app.ChapterInput{
		Number:  req.Number,
		Title:   req.Title,
		Content: req.Content,
		IsFree:  req.IsFree,
	}
}

func (s *Server) handleMyChapters(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID string) {
	switch r.Method {
	case http.MethodGet:
		chapters, err := s.app.ListMyChapters(identity, bookID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": chapters, "count": len(chapters)})
	case http.MethodPost:
		var req chapterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		chapter, err := s.app.AddChapter(r.Context(), identity, bookID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, chapter)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMyChapterByID(w http.ResponseWriter, r *http.Request, identity authz.Identity, bookID, chapterID string) {
	switch r.Method {
	case http.MethodPut:
		var req chapterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		chapter, err := s.app.UpdateChapter(identity, bookID, chapterID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chapter)
	case http.MethodDelete:
		if err := s.app.DeleteChapter(identity, bookID, chapterID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
