package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetops/tracker/pkg/coordinator"
	"github.com/fleetops/tracker/pkg/models"
)

func (s *Server) scraperStatusHandler(c *gin.Context) {
	result := s.coord.LastResult()
	c.JSON(http.StatusOK, gin.H{
		"running":    s.coord.IsRunning(),
		"lastResult": result,
	})
}

func (s *Server) scraperRunHandler(c *gin.Context) {
	var req scraperRunRequest
	_ = c.ShouldBindJSON(&req)

	var result *coordinator.CycleResult
	if req.ProviderID != "" {
		result = s.coord.RunProvider(c.Request.Context(), req.ProviderID)
	} else {
		result = s.coord.Run(c.Request.Context(), coordinator.ModeAll)
	}

	if result.Skipped {
		c.JSON(http.StatusConflict, gin.H{"skipped": true, "reason": result.SkipReason})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) schedulerStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":            s.cfg.Scheduler.Enabled,
		"aiDetectionEnabled": s.cfg.Scheduler.AIDetectionEnabled,
		"cronSchedule":       s.cfg.Scheduler.CronSchedule,
	})
}

// schedulerToggleHandler flips the in-memory scheduler-enabled flag.
// Takes effect for the scheduler's own gating on its next tick; does not
// itself start or stop the background goroutine — that lifecycle is
// bound at process startup (§6).
func (s *Server) schedulerToggleHandler(c *gin.Context) {
	var req schedulerToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.cfg.Scheduler.Enabled = req.Enabled
	c.JSON(http.StatusOK, gin.H{"enabled": s.cfg.Scheduler.Enabled})
}

func (s *Server) aiStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"detectionEnabled":  s.cfg.Scheduler.AIDetectionEnabled,
		"detectionInterval": s.cfg.Scheduler.AIDetectionInterval.String(),
	})
}

func (s *Server) aiToggleDetectionHandler(c *gin.Context) {
	var req aiToggleDetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.cfg.Scheduler.AIDetectionEnabled = req.Enabled
	c.JSON(http.StatusOK, gin.H{"detectionEnabled": s.cfg.Scheduler.AIDetectionEnabled})
}

// aiRunDetectionHandler forces an out-of-band Stop Detector → Escalation
// Engine pass against every active, AI-enabled trip, independent of the
// scheduler's own interval gating (§6).
func (s *Server) aiRunDetectionHandler(c *gin.Context) {
	ctx := c.Request.Context()
	trips, err := s.store.AIEnabledTrips(ctx, models.TripStateEnRuta)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	events, err := s.stopDet.Run(ctx, trips)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results, err := s.escalation.Process(ctx, events)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tripsScanned": len(trips),
		"stopsFound":   len(events),
		"escalations":  results,
	})
}

func (s *Server) aiManualCallHandler(c *gin.Context) {
	var req manualCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := s.escalation.ManualCall(c.Request.Context(), req.TripID, models.ContactRole(req.ContactRole), req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// voiceWebhookHandler reconciles the optimistic answered=true recorded at
// call-placement time with the voice provider's end-of-call-report,
// per the Design Note §9 open question on call outcome reconciliation.
func (s *Server) voiceWebhookHandler(c *gin.Context) {
	var req vapiWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Message.Type != "end-of-call-report" {
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}

	outcome := models.OutcomeAtendida
	if req.Message.EndedReason == "no-answer" || req.Message.EndedReason == "voicemail" {
		outcome = models.OutcomeNoAtendida
	}

	if err := s.store.ReconcileCallLog(c.Request.Context(), req.Message.Call.ID, outcome, int(req.Message.DurationSec), req.Message.Summary); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reconciled": true})
}
