package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-basket-client/internal/logging"
)

// NewRouter builds the gin engine with health check, request logging and
// the basket routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logging.OrNop(cfg.Logger)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterBasketRoutes(r, cfg)
	return r
}
