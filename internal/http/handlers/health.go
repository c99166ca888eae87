package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

var ErrShuttingDown = errors.New("shutting down")

// Draining fails once isShuttingDown reports true so load balancers stop routing here.
func Draining(isShuttingDown func() bool) Check {
	return func(context.Context) error {
		if isShuttingDown() {
			return ErrShuttingDown
		}

		return nil
	}
}

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))

	for name, check := range h.checks {
		if err := check(cctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}

		results[name] = "ok"
	}

	state := "ready"

	if status != http.StatusOK {
		state = "not_ready"
	}

	ctx.JSON(status, gin.H{"status": state, "checks": results})
}
