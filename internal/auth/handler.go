package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appwini/internal/domain/user"
)

const DefaultRole = "user"

type Dependencies struct {
	JWT   *JWTManager
	Users *UserRepo
	Log   *zap.Logger
}

type Handler struct {
	deps Dependencies
}

func NewHandler(d Dependencies) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{deps: d}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResp struct {
	Token     string    `json:"token"`
	ExpiresAt string    `json:"expires_at"`
	User      user.User `json:"user"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	pwHash, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password hash failed"})
		return
	}

	u, err := h.deps.Users.Create(c.Request.Context(), req.Name, req.Email, pwHash, DefaultRole)
	if errors.Is(err, ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}
	if err != nil {
		h.deps.Log.Error("create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	h.respondWithToken(c, http.StatusCreated, u)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	u, err := h.deps.Users.ByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.deps.Log.Error("load user", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !CheckPassword(u.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, u)
}

func (h *Handler) Me(c *gin.Context) {
	uidAny, _ := c.Get(CtxUserIDKey)
	uid, _ := uidAny.(int64)

	u, err := h.deps.Users.ByID(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, u user.User) {
	token, exp, err := h.deps.JWT.Sign(u.ID, u.Role)
	if err != nil {
		h.deps.Log.Error("sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, authResp{Token: token, ExpiresAt: exp.UTC().Format("2006-01-02T15:04:05Z"), User: u})
}
