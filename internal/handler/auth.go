package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"urbanflow/internal/storage"
	"urbanflow/internal/validate"
)

// --- Token signing / verification ---

// SignToken produces a "userID.expiry.hmac" bearer token.
func SignToken(userID int64, expiry time.Time, secret []byte) string {
	payload := fmt.Sprintf("%d.%d", userID, expiry.Unix())
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + sig
}

// VerifyToken checks a "userID.expiry.hmac" token.
// Returns userID on success, 0 on failure.
func VerifyToken(value string, secret []byte) int64 {
	parts := strings.SplitN(value, ".", 3)
	if len(parts) != 3 {
		return 0
	}
	payload := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return 0
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		return 0
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0
	}
	return userID
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (h *Handler) issueToken(userID int64) (string, time.Time) {
	expiry := time.Now().Add(h.cfg.TokenTTL)
	return SignToken(userID, expiry, h.tokenSecret), expiry
}

// --- Handlers ---

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100,password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message   string       `json:"message"`
	User      storage.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = validate.NormalizeEmail(req.Email)

	if err := validate.Struct(req); err != nil {
		h.writeUpstreamError(w, r, "register", err)
		return
	}

	ctx := r.Context()
	if _, err := h.db.UserByEmail(ctx, req.Email); err == nil {
		writeError(w, http.StatusConflict, "User with this email already exists")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("register: lookup email", "error", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	if _, err := h.db.UserByUsername(ctx, req.Username); err == nil {
		writeError(w, http.StatusConflict, "Username is already taken")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("register: lookup username", "error", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("register: hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user, err := h.db.CreateUser(ctx, req.Username, req.Email, string(hash))
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		h.logger.Error("register: create user", "error", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	token, expiry := h.issueToken(user.ID)
	h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, authResponse{
		Message:   "User registered successfully",
		User:      user,
		Token:     token,
		ExpiresAt: expiry.UTC(),
	})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := validate.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.db.UserByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("login: db lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, expiry := h.issueToken(user.ID)
	h.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		Message:   "Login successful",
		User:      user,
		Token:     token,
		ExpiresAt: expiry.UTC(),
	})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	user, err := h.db.UserByID(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("me: db lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
