package api

import (
	"net/http"

	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
)

// MobileAuthRequest is the payload for POST /api/mobile-auth
type MobileAuthRequest struct {
	Identifier    string `json:"identifier"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
}

// MobileAuthResponse is the response for POST /api/mobile-auth
type MobileAuthResponse struct {
	Success      bool         `json:"success"`
	User         *models.User `json:"user"`
	SessionToken string       `json:"sessionToken"`
}

// handleMobileAuth upserts the user record and issues a session token.
func (s *Server) handleMobileAuth(w http.ResponseWriter, r *http.Request) {
	var req MobileAuthRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Identifier == "" || req.Username == "" || req.WalletAddress == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "identifier, username and walletAddress are required", nil)
		return
	}

	user, err := s.users.Upsert(r.Context(), req.Identifier, req.Username, req.WalletAddress)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(r.Context(), user); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("cache invalidation failed")
		}
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to issue session token", nil)
		return
	}

	respondJSON(w, http.StatusOK, MobileAuthResponse{
		Success:      true,
		User:         user,
		SessionToken: token,
	})
}

// CreateCashlinkRequest is the payload for POST /api/cash-link
type CreateCashlinkRequest struct {
	Code            string `json:"code"`
	TransactionHash string `json:"transactionHash"`
}

// CreateCashlinkResponse is the response for POST /api/cash-link
type CreateCashlinkResponse struct {
	Success  bool             `json:"success"`
	Cashlink *models.CashLink `json:"cashlink"`
}

// handleCreateCashlink persists a claim code against its on-chain
// transaction hash for the authenticated user.
func (s *Server) handleCreateCashlink(w http.ResponseWriter, r *http.Request) {
	sessionUser := sessionUserFromContext(r.Context())

	var req CreateCashlinkRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Code == "" || req.TransactionHash == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "code and transactionHash are required", nil)
		return
	}

	link, err := s.cashlinks.Create(r.Context(), req.Code, req.TransactionHash, sessionUser.Identifier)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	if s.cache != nil {
		user := &models.User{Identifier: sessionUser.Identifier, Username: sessionUser.Username}
		if err := s.cache.InvalidateUser(r.Context(), user); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("cache invalidation failed")
		}
	}

	respondJSON(w, http.StatusOK, CreateCashlinkResponse{
		Success:  true,
		Cashlink: link,
	})
}

// handleListCashlinks returns the authenticated user's cash links as a
// transaction-hash-to-code map.
func (s *Server) handleListCashlinks(w http.ResponseWriter, r *http.Request) {
	sessionUser := sessionUserFromContext(r.Context())

	if s.cache != nil {
		if cached, found, err := s.cache.GetCashlinkMap(r.Context(), sessionUser.Identifier); err == nil && found {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	links, err := s.cashlinks.ListByUser(r.Context(), sessionUser.Identifier)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	result := make(map[string]string, len(links))
	for _, link := range links {
		result[link.TransactionHash] = link.Code
	}

	if s.cache != nil {
		if err := s.cache.SetCashlinkMap(r.Context(), sessionUser.Identifier, result); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// ResolveUserRequest is the payload for POST /api/resolve-user
type ResolveUserRequest struct {
	Payload string `json:"payload"`
}

// ResolveUserResponse is the response for POST /api/resolve-user
type ResolveUserResponse struct {
	User *models.User `json:"user"`
}

// handleResolveUser finds a user by username or identifier, so senders can
// address transfers to a handle instead of a raw wallet address.
func (s *Server) handleResolveUser(w http.ResponseWriter, r *http.Request) {
	var req ResolveUserRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Payload == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "payload is required", nil)
		return
	}

	if s.cache != nil {
		if cached, found, err := s.cache.GetResolvedUser(r.Context(), req.Payload); err == nil && found {
			respondJSON(w, http.StatusOK, ResolveUserResponse{User: cached})
			return
		}
	}

	user, err := s.users.Resolve(r.Context(), req.Payload)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetResolvedUser(r.Context(), req.Payload, user); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, ResolveUserResponse{User: user})
}

// ValidateSessionResponse is the response for POST /api/validate-session
type ValidateSessionResponse struct {
	Valid   bool               `json:"valid"`
	User    *types.SessionUser `json:"user,omitempty"`
	Message string             `json:"message,omitempty"`
}

// handleValidateSession reports whether the bearer token is a live session.
// Invalid, expired and missing tokens answer 401 with the reason in the body.
func (s *Server) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.sessions.Validate(r.Context(), bearerToken(r))
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnauthorized
	}

	respondJSON(w, status, ValidateSessionResponse{
		Valid:   result.Valid,
		User:    result.User,
		Message: result.Message,
	})
}
