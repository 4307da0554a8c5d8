package server

import (
	"net/http"
	"strings"

	"storyconnect/internal/app"
	"storyconnect/pkg/authz"
)

type blogPostRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

func (req blogPostRequest) input() app.BlogPostInput {
	return app.BlogPostInput{Title: req.Title, Category: req.Category, Content: req.Content}
}

func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		posts, err := s.app.ListBlogPosts()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": posts, "count": len(posts)})
	case http.MethodPost:
		var req blogPostRequest
		if !decodeBody(w, r, &req) {
			return
		}
		post, err := s.app.CreateBlogPost(identity, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBlogByID(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	postID, ok := lastSegment(r.URL.Path, "/blog/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		post, err := s.app.GetBlogPost(postID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	case http.MethodPut:
		var req blogPostRequest
		if !decodeBody(w, r, &req) {
			return
		}
		post, err := s.app.UpdateBlogPost(identity, postID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	case http.MethodDelete:
		if err := s.app.DeleteBlogPost(identity, postID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

type discussionRequest struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

func (s *Server) handleDiscussions(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		discussions, err := s.app.ListDiscussions()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": discussions, "count": len(discussions)})
	case http.MethodPost:
		var req discussionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		discussion, err := s.app.CreateDiscussion(identity, app.DiscussionInput{
			Category: req.Category,
			Title:    req.Title,
			Content:  req.Content,
		})
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, discussion)
	default:
		methodNotAllowed(w)
	}
}

type replyRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleDiscussionSubtree(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/discussions/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	discussionID := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		discussion, err := s.app.GetDiscussion(discussionID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, discussion)
	case parts[1] == "like":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		discussion, err := s.app.LikeDiscussion(identity, discussionID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, discussion)
	case parts[1] == "replies":
		s.handleDiscussionReplies(w, r, identity, discussionID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleDiscussionReplies(w http.ResponseWriter, r *http.Request, identity authz.Identity, discussionID string) {
	switch r.Method {
	case http.MethodGet:
		replies, err := s.app.ListReplies(discussionID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": replies, "count": len(replies)})
	case http.MethodPost:
		var req replyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		reply, err := s.app.ReplyToDiscussion(identity, discussionID, req.Content)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, reply)
	default:
		methodNotAllowed(w)
	}
}

type founderRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Bio         string `json:"bio"`
	LinkedinURL string `json:"linkedinUrl"`
	TwitterURL  string `json:"twitterUrl"`
	OrderIndex  int    `json:"orderIndex"`
}

func (req founderRequest) input() app.FounderInput {
	return app.FounderInput{
		Name:        req.Name,
		Role:        req.Role,
		Bio:         req.Bio,
		LinkedinURL: req.LinkedinURL,
		TwitterURL:  req.TwitterURL,
		OrderIndex:  req.OrderIndex,
	}
}

func (s *Server) handleFounders(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		founders, err := s.app.ListFounders()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": founders, "count": len(founders)})
	case http.MethodPost:
		var req founderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		founder, err := s.app.SaveFounder(identity, "", req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, founder)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFounderByID(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	founderID, ok := lastSegment(r.URL.Path, "/founders/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req founderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		founder, err := s.app.SaveFounder(identity, founderID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, founder)
	case http.MethodDelete:
		if err := s.app.DeleteFounder(identity, founderID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
