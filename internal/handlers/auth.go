package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
	"github.com/EQSP-Task-Manager/backend-draft/internal/storage"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	request := credentialsRequest{}
	if err := c.ShouldBindBodyWithJSON(&request); err != nil || request.Email == "" || request.Password == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), h.db, request.Email, string(hashed))
	if errors.Is(err, storage.ErrEmailTaken) {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "email already registered"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles POST /auth/login. The issued token carries the user id as
// its subject, which the auth middleware later threads into every task
// operation.
func (h *Handler) Login(c *gin.Context) {
	request := credentialsRequest{}
	if err := c.ShouldBindBodyWithJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.UserByEmail(c.Request.Context(), h.db, request.Email)
	if errors.Is(err, storage.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(request.Password))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		jwt.MapClaims{
			"sub": user.ID.String(),
			"exp": time.Now().Add(24 * time.Hour).Unix()})

	tokenString, err := token.SignedString([]byte(h.jwtKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, models.Token{Token: tokenString})
}
