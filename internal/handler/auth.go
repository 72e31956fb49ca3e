package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/auth"
	"github.com/tabletrack/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the read side of the global users collection.
// Satisfied by *collection.Synced[[]model.User].
type UserStore interface {
	Get() []model.User
}

type AuthHandler struct {
	users     UserStore
	jwtSecret string
	log       *logrus.Entry
}

func NewAuthHandler(users UserStore, jwtSecret string, log *logrus.Entry) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, log: log}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var user *model.User
	for _, u := range h.users.Get() {
		if u.Username == req.Username {
			user = &u
			break
		}
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, user.ID, user.BranchID, user.Role)
	if err != nil {
		h.log.WithError(err).Error("sign token")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User: userResponse{
			ID:       user.ID,
			Username: user.Username,
			Name:     user.Name,
			Role:     user.Role,
			BranchID: user.BranchID,
		},
	})
}
