// Package server assembles the catalog API: products, categories, auth and
// health routes over a single database handle.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appwini/internal/auth"
	"appwini/internal/categories"
	"appwini/internal/config"
	"appwini/internal/db"
	"appwini/internal/logging"
	"appwini/internal/products"
)

func NewRouter(cfg config.Config, conn *db.DB, log *zap.Logger) *gin.Engine {
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtMgr := auth.NewJWTManager(auth.JWTConfig{
		Issuer: cfg.JWTIssuer,
		Secret: cfg.JWTSecret,
		TTLMin: cfg.TokenTTLMin,
	})

	authHandler := auth.NewHandler(auth.Dependencies{
		JWT:   jwtMgr,
		Users: auth.NewUserRepo(conn),
		Log:   log,
	})
	prodHandler := products.NewHandler(products.NewRepo(conn), log)
	catHandler := categories.NewHandler(categories.NewRepo(conn), log)
	health := &healthHandler{db: conn}

	r := gin.New()
	r.Use(logging.GinLogger(log), gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", health.Check)

	// Public catalog routes (no login required)
	api.GET("/categories", catHandler.List)
	api.GET("/products", prodHandler.List)
	api.GET("/products/:id", prodHandler.Get)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(auth.AuthMiddleware(jwtMgr))
	{
		protected.GET("/me", authHandler.Me)
		protected.PATCH("/products/:id/stock", auth.RequireRole("admin", "seller"), prodHandler.SetStock)
	}

	return r
}
