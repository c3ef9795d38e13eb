package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/quizlink/internal/quiz"
	"github.com/danmuck/quizlink/internal/serial"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		st, err := s.currentStatus(c)
		ready := err == nil && (st.State == quiz.HostWaitingMember.String() || st.State == quiz.HostQuiz.String())
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":   ready,
			"state":   st.State,
			"uptime":  time.Since(s.started).String(),
			"version": Version,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		st, err := s.currentStatus(c)
		if err != nil {
			c.JSON(statusCode(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	if s.link != nil {
		s.router.GET(s.cfg.LinkPath, gin.WrapH(s.link))
	}
}

var ErrNoStatus = errors.New("no quiz attached")

func (s *Server) currentStatus(c *gin.Context) (quiz.Status, error) {
	if s.status == nil {
		return quiz.Status{}, ErrNoStatus
	}
	return s.status.Status(c.Request.Context())
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrNoStatus), errors.Is(err, serial.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, serial.ErrQueryTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
