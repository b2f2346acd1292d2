package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/goalpath/internal/domain"
	"github.com/ashureev/goalpath/internal/store"
)

const minPasswordLen = 6

// RegisterUserRoutes registers signup and login.
func (h *Handler) RegisterUserRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
	})
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /user/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		Error(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		Error(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	now := h.now()
	user := &domain.User{
		UserID:       uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			Error(w, http.StatusBadRequest, "User already exists")
			return
		}
		slog.Error("Failed to create user", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	slog.Info("User signed up", "user_id", user.UserID)
	OK(w, http.StatusCreated, "User created successfully", user)
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login handles POST /user/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("Failed to look up user", "error", err)
			Error(w, http.StatusInternalServerError, "Failed to log in")
			return
		}
		Error(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		Error(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.tokens.Issue(user.UserID, user.Email)
	if err != nil {
		slog.Error("Failed to issue token", "user_id", user.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	JSON(w, http.StatusOK, tokenResponse{Token: token})
}
