// Package sidecarapi implements the orchestration sidecar HTTP surface
// (spec.md §4.11): event bus, result store, context injection, and agent
// spawn/status tracking for a fixed roster of specialist agents. Bound to
// loopback on a fixed well-known port (default 3001).
package sidecarapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pilotdev/pilotd/pkg/apierr"
	pilotcontext "github.com/pilotdev/pilotd/pkg/context"
	"github.com/pilotdev/pilotd/pkg/eventbus"
	"github.com/pilotdev/pilotd/pkg/resultstore"
)

// spawnedAgent records the (issue_id, agent_type) a spawned agent_id was
// allocated for, so GET /api/agents/:agent_id/status can probe the result
// store without requiring the caller to resupply those keys.
type spawnedAgent struct {
	IssueID   string
	AgentType string
}

// Server wires the sidecar's subsystems into gin handlers.
type Server struct {
	StartedAt  time.Time
	Bus        *eventbus.Bus
	Results    *resultstore.Store
	Broker     *pilotcontext.Broker
	ProjectDir func(issueID string) string

	mu      sync.Mutex
	spawned map[string]spawnedAgent
}

// Router builds the gin engine for the sidecar HTTP surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/api/context/:issue_id/:agent_type", s.handleGetContext)
	r.POST("/api/results", s.handlePostResult)
	r.POST("/api/events/:event_type", s.handlePublishEvent)
	r.GET("/api/events/wait/:event_type", s.handleWaitForEvent)
	r.POST("/api/agents/spawn", s.handleSpawnAgent)
	r.GET("/api/agents/:agent_id/status", s.handleAgentStatus)
	r.DELETE("/api/cache/context/:issue_id", s.handleClearContextCache)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.StartedAt).Seconds()),
	})
}

func (s *Server) handleGetContext(c *gin.Context) {
	issueID := c.Param("issue_id")
	agentType := c.Param("agent_type")

	projectDir := "."
	if s.ProjectDir != nil {
		projectDir = s.ProjectDir(issueID)
	}

	ctx, err := s.Broker.GatherContext(c.Request.Context(), projectDir, issueID, agentType)
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to gather context", err))
		return
	}
	c.JSON(http.StatusOK, ctx)
}

type resultRequest struct {
	IssueID   string `json:"issue_id" binding:"required"`
	AgentType string `json:"agent_type" binding:"required"`
	Result    any    `json:"result"`
}

func (s *Server) handlePostResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed result request: "+err.Error())
		return
	}

	if err := s.Results.StoreResult(req.IssueID, req.AgentType, req.Result); err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to store result", err))
		return
	}

	payload, err := json.Marshal(gin.H{"issue_id": req.IssueID, "agent_type": req.AgentType})
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to marshal event payload", err))
		return
	}
	s.Bus.Publish("agent_completed", "sidecar", req.IssueID, payload)

	c.JSON(http.StatusOK, gin.H{"stored": true})
}

type publishEventRequest struct {
	Publisher     string          `json:"publisher"`
	Topic         string          `json:"topic"`
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlation_id"`
}

func (s *Server) handlePublishEvent(c *gin.Context) {
	eventType := c.Param("event_type")

	var req publishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed publish event request: "+err.Error())
		return
	}

	eventID := s.Bus.Publish(eventType, req.Publisher, req.Topic, req.Data)
	c.JSON(http.StatusOK, gin.H{"event_id": eventID})
}

// waitDefaultTimeout matches spec.md §10's timeout=0-returns-immediately
// boundary behavior when the query param is absent rather than "0".
const waitDefaultTimeout = 30 * time.Second

func (s *Server) handleWaitForEvent(c *gin.Context) {
	eventType := c.Param("event_type")

	timeout := waitDefaultTimeout
	if raw := c.Query("timeout"); raw != "" {
		ms, err := parseNonNegativeMillis(raw)
		if err != nil {
			apierr.BadRequest(c, "invalid timeout: "+err.Error())
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	events := s.Bus.WaitForEvent(c.Request.Context(), eventType, timeout)

	// WaitForEvent always drains everything buffered at the moment it
	// wakes, so there is nothing left for an immediate follow-up poll to
	// find — more_available is always false under this bus's
	// single-consumer-per-wait contract (spec.md §4.6, Open Question 3).
	c.JSON(http.StatusOK, gin.H{
		"events":         events,
		"more_available": false,
		"next_cursor":    len(events),
	})
}

type spawnAgentRequest struct {
	IssueID   string `json:"issue_id" binding:"required"`
	AgentType string `json:"agent_type" binding:"required"`
}

func (s *Server) handleSpawnAgent(c *gin.Context) {
	var req spawnAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed spawn request: "+err.Error())
		return
	}

	agentID := uuid.NewString()

	projectDir := "."
	if s.ProjectDir != nil {
		projectDir = s.ProjectDir(req.IssueID)
	}

	ctxInjected := true
	if _, err := s.Broker.GatherContext(c.Request.Context(), projectDir, req.IssueID, req.AgentType); err != nil {
		ctxInjected = false
	}

	payload, err := json.Marshal(gin.H{
		"agent_id":   agentID,
		"issue_id":   req.IssueID,
		"agent_type": req.AgentType,
	})
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to marshal spawn event payload", err))
		return
	}
	s.Bus.Publish("agent_spawned", "sidecar", req.IssueID, payload)

	s.mu.Lock()
	if s.spawned == nil {
		s.spawned = make(map[string]spawnedAgent)
	}
	s.spawned[agentID] = spawnedAgent{IssueID: req.IssueID, AgentType: req.AgentType}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"agent_id":         agentID,
		"spawned":          true,
		"process_id":       nil,
		"context_injected": ctxInjected,
		"webhook_url":      "",
	})
}

func (s *Server) handleAgentStatus(c *gin.Context) {
	agentID := c.Param("agent_id")

	s.mu.Lock()
	rec, known := s.spawned[agentID]
	s.mu.Unlock()

	if !known {
		apierr.NotFound(c, "unknown agent_id")
		return
	}

	status := "running"
	if s.Results.HasResult(rec.IssueID, rec.AgentType) {
		status = "completed"
	}

	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "status": status})
}

func (s *Server) handleClearContextCache(c *gin.Context) {
	issueID := c.Param("issue_id")
	s.Broker.ClearCache(issueID)
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
