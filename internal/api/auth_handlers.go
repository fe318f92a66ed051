package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caremesh/clinic-scheduling/internal/identity"
)

type AuthHandler struct {
	svc *identity.Service
	log zerolog.Logger
}

func NewAuthHandler(svc *identity.Service, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
		return
	}

	input := identity.RegisterInput{
		Kind:     identity.Kind(req.Kind),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_of_birth", "date_of_birth must be YYYY-MM-DD")
			return
		}
		input.DateOfBirth = &dob
	}
	if req.GuardianID != nil {
		gid, err := uuid.Parse(*req.GuardianID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid guardian_id", "guardian_id must be a valid UUID")
			return
		}
		input.GuardianID = &gid
	}

	account, err := h.svc.Register(r.Context(), input)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "registration failed", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "registration failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, "account created", AccountResponse{
		ID:    account.ID,
		Kind:  string(account.Kind),
		Name:  account.Name,
		Email: account.Email,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
		return
	}

	token, account, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "login failed", err.Error())
		case errors.Is(err, identity.ErrAccountInactive):
			writeError(w, http.StatusForbidden, "login failed", err.Error())
		default:
			h.log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("login error")
			writeError(w, http.StatusInternalServerError, "internal server error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, "login successful", LoginResponse{
		Token: token,
		Account: AccountResponse{
			ID:    account.ID,
			Kind:  string(account.Kind),
			Name:  account.Name,
			Email: account.Email,
		},
	})
}
