package httpapi

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/riskgraph/internal/observability"
	"github.com/yungbote/riskgraph/internal/platform/logger"
	"github.com/yungbote/riskgraph/internal/platform/requestid"
)

const requestIDHeader = "X-Request-Id"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = requestid.New()
		}
		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func AccessLog(log *logger.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.APIInflightInc()
		c.Next()
		metrics.APIInflightDec()

		dur := time.Since(start)
		route := c.FullPath()
		status := c.Writer.Status()
		metrics.ObserveAPI(c.Request.Method, route, strconv.Itoa(status), dur)
		log.With(
			"request_id", requestid.FromContext(c.Request.Context()),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", dur.Milliseconds(),
		).Info("http request")
	}
}

func Recover(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				id := requestid.FromContext(c.Request.Context())
				log.With("request_id", id, "panic", rec, "stack", string(debug.Stack())).Error("panic recovered")
				RespondError(c, http.StatusInternalServerError, "internal_error", "", errors.New("internal server error"))
			}
		}()
		c.Next()
	}
}

func MaxBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
