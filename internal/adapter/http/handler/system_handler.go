package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mobile-money-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthPingTimeout = 2 * time.Second

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged in parallel and
// any failure reports the service as degraded with a 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			deps    = make(map[string]dependencyStatus, len(checkers))
			healthy = true
			g       errgroup.Group
		)
		for _, checker := range checkers {
			g.Go(func() error {
				start := time.Now()
				err := checker.Ping(ctx)
				st := dependencyStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					st.Status = "unhealthy"
					st.Error = err.Error()
				}

				mu.Lock()
				defer mu.Unlock()
				deps[checker.Name()] = st
				if err != nil {
					healthy = false
				}
				return nil
			})
		}
		_ = g.Wait()

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "dependencies": deps})
	}
}

// DocsHandler serves the OpenAPI document and a Swagger UI page for it.
type DocsHandler struct {
	spec []byte
}

// NewDocsHandler wraps an OpenAPI YAML document; nil means none is loaded.
func NewDocsHandler(spec []byte) *DocsHandler {
	return &DocsHandler{spec: spec}
}

// Spec handles GET /swagger/spec.
func (h *DocsHandler) Spec(c *gin.Context) {
	if len(h.spec) == 0 {
		c.String(http.StatusNotFound, "OpenAPI document not loaded")
		return
	}
	c.Data(http.StatusOK, "application/yaml", h.spec)
}

// UI handles GET /swagger.
func (h *DocsHandler) UI(c *gin.Context) {
	if len(h.spec) == 0 {
		c.String(http.StatusNotFound, "OpenAPI document not loaded")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Mobile Money Gateway API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: 'swagger/spec', dom_id: '#swagger-ui', deepLinking: true });
  </script>
</body>
</html>`
