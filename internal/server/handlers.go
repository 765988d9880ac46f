package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/literature-assistant/internal/domain"
)

// Validation constants.
const (
	maxMessageLength   = 10000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// createSessionRequest is the JSON request body for creating a session. The
// first message is optional: when present the session's opening turn is
// handled immediately.
type createSessionRequest struct {
	Message string `json:"message,omitempty"`
}

// turnRequest is the JSON request body for one conversation turn.
type turnRequest struct {
	Message string `json:"message"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Reply     string `json:"reply"`
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Reply     string    `json:"reply,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID      string            `json:"session_id"`
	State          string            `json:"state"`
	RawQuery       string            `json:"raw_query,omitempty"`
	EnhancedQuery  string            `json:"enhanced_query,omitempty"`
	ExpansionTerms []string          `json:"expansion_terms,omitempty"`
	Recipient      string            `json:"recipient,omitempty"`
	ArticleCount   int               `json:"article_count"`
	Turns          int               `json:"turns"`
	Delivery       *deliveryResponse `json:"delivery,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type deliveryResponse struct {
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	ArticleCount int       `json:"article_count"`
	AttemptedAt  time.Time `json:"attempted_at"`
}

// createSession handles POST /api/v1/sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSessionRequest
	if r.ContentLength != 0 {
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON request body")
				return
			}
		}
	}

	req.Message = strings.TrimSpace(req.Message)
	if len(req.Message) > maxMessageLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("message must be at most %d characters", maxMessageLength))
		return
	}

	session := s.machine.StartSession()

	resp := createSessionResponse{
		SessionID: session.ID.String(),
		State:     string(session.State),
		CreatedAt: session.CreatedAt,
	}

	if req.Message != "" {
		reply, err := s.machine.HandleTurn(ctx, session.ID, req.Message)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.State = string(reply.State)
		resp.Reply = reply.Message
	}

	writeJSON(w, http.StatusCreated, resp)
}

// postTurn handles POST /api/v1/sessions/{sessionID}/turns.
func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req turnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > maxMessageLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("message must be at most %d characters", maxMessageLength))
		return
	}

	reply, err := s.machine.HandleTurn(ctx, sessionID, req.Message)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{
		SessionID: reply.SessionID.String(),
		State:     string(reply.State),
		Reply:     reply.Message,
	})
}

// getSession handles GET /api/v1/sessions/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	session, err := s.machine.GetSession(sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainSessionToResponse(session))
}

// abandonSession handles DELETE /api/v1/sessions/{sessionID}.
func (s *Server) abandonSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	if err := s.machine.Abandon(sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID.String(),
		"state":      string(domain.StateAbandoned),
	})
}

func domainSessionToResponse(s *domain.Session) sessionResponse {
	resp := sessionResponse{
		SessionID:      s.ID.String(),
		State:          string(s.State),
		RawQuery:       s.RawQuery,
		EnhancedQuery:  s.EnhancedQuery,
		ExpansionTerms: s.ExpansionTerms,
		Recipient:      s.Recipient,
		ArticleCount:   len(s.Articles),
		Turns:          s.Turns,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.Delivery != nil {
		resp.Delivery = &deliveryResponse{
			Recipient:    s.Delivery.Recipient,
			Subject:      s.Delivery.Subject,
			Status:       string(s.Delivery.Status),
			Reason:       s.Delivery.Reason,
			ArticleCount: s.Delivery.ArticleCount,
			AttemptedAt:  s.Delivery.AttemptedAt,
		}
	}
	return resp
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrSessionTerminal):
		writeError(w, http.StatusConflict, "session is in a terminal state")
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid query")
	case errors.Is(err, domain.ErrInvalidRecipient):
		var re *domain.InvalidRecipientError
		if errors.As(err, &re) {
			writeError(w, http.StatusBadRequest, re.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid recipient")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
