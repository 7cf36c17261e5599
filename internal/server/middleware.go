package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Int("status", statusCode).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// requireHistory rejects history requests when recording is disabled
func requireHistory(hist HistoryReader, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hist == nil {
			log.Debug().Msg("History requested but recording is disabled")
			c.JSON(http.StatusNotFound, gin.H{"error": "History is disabled"})
			c.Abort()
			return
		}
		c.Next()
	}
}
