package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/duoauth/duoauth/internal/models"
	"github.com/duoauth/duoauth/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// UserHandlers is the pass-through admin surface over the account store.
// Password plaintext never leaves this layer: create and update rehash through
// the same PasswordHasher the login path verifies against.
type UserHandlers struct {
	accounts service.AccountStore
	hasher   *service.PasswordHasher
	logger   *logrus.Logger
}

func NewUserHandlers(accounts service.AccountStore, hasher *service.PasswordHasher, logger *logrus.Logger) *UserHandlers {
	return &UserHandlers{
		accounts: accounts,
		hasher:   hasher,
		logger:   logger,
	}
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(a *models.Account) UserResponse {
	return UserResponse{
		ID:        a.ID,
		Email:     a.Email,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// ListUsers returns all non-admin accounts.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list accounts")
		respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		return
	}

	users := make([]UserResponse, 0, len(accounts))
	for i := range accounts {
		if accounts[i].IsAdmin() {
			continue
		}
		users = append(users, toUserResponse(&accounts[i]))
	}

	respondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if !isValidEmail(email) {
		respondWithError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
		return
	}

	if req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "MISSING_PASSWORD", "Password is required")
		return
	}

	// Best-effort uniqueness check. Two instances creating the same email at
	// the same time can both pass it; the race is tolerated, since login
	// reports the resulting duplicates as a data-integrity error.
	_, err := h.accounts.FindByEmail(r.Context(), email)
	if err == nil || errors.Is(err, service.ErrDataIntegrity) {
		respondWithError(w, http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists")
		return
	}
	if !errors.Is(err, service.ErrAccountNotFound) {
		h.logger.WithError(err).Error("Failed to check email uniqueness")
		respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		respondWithError(w, http.StatusInternalServerError, "HASHING_FAILED", "Failed to process password")
		return
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}

	if err := h.accounts.Create(r.Context(), account); err != nil {
		h.logger.WithError(err).Error("Failed to create account")
		respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		return
	}

	respondWithJSON(w, http.StatusCreated, toUserResponse(account))
}

func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get account")
		respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		return
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if !isValidEmail(email) {
			respondWithError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
			return
		}
		account.Email = email
	}

	if req.Password != nil {
		if *req.Password == "" {
			respondWithError(w, http.StatusBadRequest, "MISSING_PASSWORD", "Password must not be empty")
			return
		}
		passwordHash, err := h.hasher.Hash(*req.Password)
		if err != nil {
			h.logger.WithError(err).Error("Failed to hash password")
			respondWithError(w, http.StatusInternalServerError, "HASHING_FAILED", "Failed to process password")
			return
		}
		account.PasswordHash = passwordHash
	}

	if err := h.accounts.Update(r.Context(), account); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.WithError(err).Error("Failed to update account")
		respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, toUserResponse(account))
}

func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.WithError(err).Error("Failed to delete account")
		respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "User deleted",
	})
}
