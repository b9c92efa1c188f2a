package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopagent/cartwright/pkg/saga"
)

// Preview runs capture through trust synchronously and returns the
// payload without touching checkout.
func (s *Server) Preview(c *gin.Context) {
	var in saga.RunInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "invalid request body: " + err.Error(),
			"error_kind": string(saga.KindInvalidInput),
		})
		return
	}

	res, err := s.engine.RunPreview(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Start runs the full saga including checkout. With ?async=1 the run is
// submitted to the pool and a 202 with the run ID is returned
// immediately.
func (s *Server) Start(c *gin.Context) {
	var in saga.RunInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "invalid request body: " + err.Error(),
			"error_kind": string(saga.KindInvalidInput),
		})
		return
	}

	if c.Query("async") == "1" {
		s.startAsync(c, in)
		return
	}

	res, err := s.engine.RunFull(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) startAsync(c *gin.Context, in saga.RunInput) {
	runID := s.manager.Create()
	err := s.pool.Submit(runID, func(ctx context.Context) {
		s.manager.SetRunning(runID)
		res, runErr := s.engine.Execute(ctx, runID, in, true)
		switch {
		case runErr == nil:
			s.manager.Complete(runID, res)
		case errors.Is(ctx.Err(), context.Canceled):
			s.manager.Cancelled(runID, res)
		default:
			s.manager.Fail(runID, res, runErr)
		}
	})
	if err != nil {
		s.manager.Fail(runID, nil, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": string(saga.StatusPending),
	})
}

// ListRuns returns summaries of all known runs, newest first.
func (s *Server) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.manager.List()})
}

// GetRun returns the stored state of one run, including the final
// payload once the run reached a terminal status.
func (s *Server) GetRun(c *gin.Context) {
	run, err := s.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRun aborts an in-flight run. Finished runs respond with 409,
// unknown runs with 404.
func (s *Server) CancelRun(c *gin.Context) {
	id := c.Param("id")
	if s.pool.Cancel(id) {
		c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": "cancelling"})
		return
	}

	run, err := s.manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusConflict, gin.H{
		"error":  "run is not active",
		"run_id": id,
		"status": run.Status,
	})
}
