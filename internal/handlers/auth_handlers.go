package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/duoauth/duoauth/internal/service"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	credentials *service.CredentialService
	otp         *service.OTPService
	logger      *logrus.Logger
}

func NewAuthHandlers(
	credentials *service.CredentialService,
	otp *service.OTPService,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		credentials: credentials,
		otp:         otp,
		logger:      logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Role        string `json:"role"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	OTPRequired bool   `json:"otp_required"`
}

type IssueOTPRequest struct {
	UserID string `json:"user_id"`
}

type IssueOTPResponse struct {
	SessionID string `json:"session_id"`
	OTP       string `json:"otp"`
	ExpiresAt int64  `json:"expires_at"`
}

type VerifyOTPRequest struct {
	UserID string `json:"user_id"`
	OTP    string `json:"otp"`
}

type VerifyOTPResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Login authenticates the first factor. Admins are done after this step;
// users get otp_required=true and proceed to issue-otp.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
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

	account, err := h.credentials.Authenticate(r.Context(), email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		case errors.Is(err, service.ErrDataIntegrity):
			h.logger.WithError(err).Error("Data integrity error during login")
			respondWithError(w, http.StatusInternalServerError, "DATA_INTEGRITY", "Account records are inconsistent")
		default:
			h.logger.WithError(err).Error("Login failed")
			respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Account store is unavailable")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{
		Role:        string(account.Role),
		UserID:      account.ID,
		Email:       account.Email,
		OTPRequired: !account.IsAdmin(),
	})
}

// IssueOTP creates a fresh challenge and returns the plaintext code for
// out-of-band delivery. This deployment displays it to the user directly in
// lieu of an SMS or email channel.
func (h *AuthHandlers) IssueOTP(w http.ResponseWriter, r *http.Request) {
	var req IssueOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	challenge, err := h.otp.Issue(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			respondWithError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
		case errors.Is(err, service.ErrStoreUnavailable):
			h.logger.WithError(err).Error("Failed to issue OTP")
			respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Challenge store is unavailable")
		default:
			h.logger.WithError(err).Error("Failed to issue OTP")
			respondWithError(w, http.StatusInternalServerError, "OTP_ISSUE_FAILED", "Failed to issue OTP")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, IssueOTPResponse{
		SessionID: challenge.SessionID,
		OTP:       challenge.Code,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// VerifyOTP consumes the pending challenge. Outcomes are differentiated:
// expired, invalid and absent each map to their own code.
func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	code := strings.TrimSpace(req.OTP)

	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	if !isValidOTPFormat(code) {
		respondWithError(w, http.StatusBadRequest, "INVALID_OTP_FORMAT", "OTP must be a 6-digit code")
		return
	}

	err := h.otp.Verify(r.Context(), userID, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			respondWithError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
		case errors.Is(err, service.ErrNoChallenge):
			respondWithError(w, http.StatusNotFound, "NO_CHALLENGE", "No OTP found for this user")
		case errors.Is(err, service.ErrChallengeExpired):
			respondWithError(w, http.StatusUnauthorized, "OTP_EXPIRED", "OTP expired")
		case errors.Is(err, service.ErrInvalidCode):
			respondWithError(w, http.StatusUnauthorized, "INVALID_OTP", "Invalid OTP")
		default:
			h.logger.WithError(err).Error("Failed to verify OTP")
			respondWithError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Challenge store is unavailable")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, VerifyOTPResponse{
		Message: "OTP verified successfully",
	})
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func isValidOTPFormat(code string) bool {
	return otpPattern.MatchString(code)
}
