package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"goaltracker/internal/apierr"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Credentials is the login and registration body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// TokenResponse is returned by login and registration.
type TokenResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserStore holds accounts and their bcrypt password hashes.
type UserStore interface {
	CreateUser(email, name string, passwordHash []byte) (User, error)
	UserByEmail(email string) (User, []byte, error)
	UserByID(id int64) (User, error)
}

func RegisterHandler(users UserStore, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierr.Write(w, http.StatusBadRequest, apierr.CodeBadRequest, "invalid json")
			return
		}
		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		if body.Email == "" || body.Password == "" {
			apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "email & password required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "password not accepted")
			return
		}

		user, err := users.CreateUser(body.Email, strings.TrimSpace(body.Name), hash)
		if errors.Is(err, ErrUserExists) {
			apierr.Write(w, http.StatusConflict, apierr.CodeConflict, "email already exists")
			return
		}
		if err != nil {
			slog.Error("create user failed", "err", err)
			apierr.Write(w, http.StatusInternalServerError, apierr.CodeInternal, "internal error")
			return
		}

		writeToken(w, http.StatusCreated, secret, ttl, user)
	}
}

func LoginHandler(users UserStore, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierr.Write(w, http.StatusBadRequest, apierr.CodeBadRequest, "invalid json")
			return
		}

		user, hash, err := users.UserByEmail(strings.ToLower(strings.TrimSpace(body.Email)))
		if err != nil || bcrypt.CompareHashAndPassword(hash, []byte(body.Password)) != nil {
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeUnauthorized, "invalid credentials")
			return
		}

		writeToken(w, http.StatusOK, secret, ttl, user)
	}
}

func MeHandler(users UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeUnauthorized, "unauthorized")
			return
		}

		user, err := users.UserByID(uid)
		if err != nil {
			apierr.Write(w, http.StatusNotFound, apierr.CodeNotFound, "user not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	}
}

func writeToken(w http.ResponseWriter, status int, secret []byte, ttl time.Duration, user User) {
	token, err := GenerateToken(secret, user.ID, ttl)
	if err != nil {
		apierr.Write(w, http.StatusInternalServerError, apierr.CodeInternal, "token error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(TokenResponse{Token: token, User: user})
}
