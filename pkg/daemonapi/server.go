// Package daemonapi implements the daemon HTTP surface (spec.md §4.10):
// classification, permission, audit-stats, token issuance, and the
// knowledge API, bound to loopback on a discovered port.
package daemonapi

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pilotdev/pilotd/pkg/apierr"
	"github.com/pilotdev/pilotd/pkg/audit"
	"github.com/pilotdev/pilotd/pkg/auth"
	"github.com/pilotdev/pilotd/pkg/classifier"
	"github.com/pilotdev/pilotd/pkg/knowledge"
	"github.com/pilotdev/pilotd/pkg/permission"
	"github.com/pilotdev/pilotd/pkg/version"
)

// Server wires the daemon's core subsystems into gin handlers. Any
// pointer field may be nil; handlers that depend on a nil subsystem
// degrade per spec.md §7 (classifier → 503, audit failures → logged
// warning, knowledge routes simply not mounted).
type Server struct {
	StartedAt  time.Time
	Port       int
	Classifier *classifier.Classifier
	Decider    *permission.Decider
	Ledger     *audit.Ledger
	Tokens     *auth.Manager
	Knowledge  *knowledge.Store
	Gateway    *Gateway
}

// Router builds the gin engine for the daemon HTTP surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.POST("/api/classify", s.handleClassify)
	r.POST("/api/hooks/permission-request", s.handlePermissionRequest)
	r.GET("/api/hooks/decisions", s.handleDecisions)
	r.POST("/api/shutdown", s.handleShutdown)
	r.POST("/api/token/generate", s.handleTokenGenerate)

	if s.Gateway != nil {
		r.POST("/api/llm/complete", s.handleComplete)
		r.GET("/api/llm/stats", s.handleGatewayStats)
	}

	if s.Knowledge != nil {
		group := r.Group("/api/knowledge")
		if s.Tokens != nil {
			group.Use(auth.RequireBearer(s.Tokens))
		} else {
			slog.Warn("knowledge routes mounted without a token manager; running unauthenticated")
		}
		group.POST("/store", s.handleKnowledgeStore)
		group.POST("/search", s.handleKnowledgeSearch)
		group.GET("/stats", s.handleKnowledgeStats)
	}

	return r
}

type hooksHealth struct {
	Enabled               bool    `json:"enabled"`
	ClassifierAvailable   bool    `json:"classifier_available"`
	ModelLoaded           bool    `json:"model_loaded"`
	ModelName             string  `json:"model_name"`
	ClassificationLatency *int64  `json:"classification_latency_ms,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        version.Full(),
		"uptime_seconds": int64(time.Since(s.StartedAt).Seconds()),
		"port":           s.Port,
		"hooks": hooksHealth{
			Enabled:             true,
			ClassifierAvailable: s.Classifier != nil,
			ModelLoaded:         s.Classifier != nil,
			ModelName:           classifierModelName(s.Classifier),
		},
	})
}

func classifierModelName(c *classifier.Classifier) string {
	if c == nil {
		return ""
	}
	return "pilotd-crud-classifier"
}

func (s *Server) handleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ready":     true,
		"version":   version.Full(),
		"timestamp": time.Now().UTC(),
	})
}

type classifyRequest struct {
	Command string `json:"command" binding:"required"`
	Context string `json:"context"`
}

type classifyResponse struct {
	Classification string    `json:"classification"`
	Confidence     float64   `json:"confidence"`
	Reasoning      string    `json:"reasoning"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Server) handleClassify(c *gin.Context) {
	if s.Classifier == nil {
		apierr.Respond(c, apierr.New(apierr.CategoryUnavailable, "classifier unavailable"))
		return
	}

	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed classify request: "+err.Error())
		return
	}

	result, err := s.Classifier.Classify(c.Request.Context(), req.Command)
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryUnavailable, "classification failed", err))
		return
	}

	c.JSON(http.StatusOK, classifyResponse{
		Classification: string(result.Classification),
		Confidence:     result.Confidence,
		Reasoning:      result.Reasoning,
		Timestamp:      time.Now().UTC(),
	})
}

type permissionRequest struct {
	Command        string `json:"command" binding:"required"`
	Classification string `json:"classification" binding:"required"`
}

type permissionResponse struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (s *Server) handlePermissionRequest(c *gin.Context) {
	if s.Decider == nil {
		apierr.Respond(c, apierr.New(apierr.CategoryUnavailable, "permission decider unavailable"))
		return
	}

	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed permission request: "+err.Error())
		return
	}

	class := classifier.Classification(req.Classification)
	verdict := s.Decider.Decide(req.Command, class, 0)

	c.JSON(http.StatusOK, permissionResponse{
		Decision:   string(verdict.Decision),
		Confidence: verdict.Confidence,
		Reasoning:  verdict.Reasoning,
	})

	if s.Ledger != nil {
		go s.writeDecision(req, class, verdict)
	}
}

func (s *Server) writeDecision(req permissionRequest, class classifier.Classification, verdict permission.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	confidence := verdict.Confidence
	decision := audit.Decision{
		ID:             newDecisionID(),
		Command:        req.Command,
		Classification: string(class),
		Timestamp:      time.Now().UTC(),
		UserDecision:   string(verdict.Decision),
		Reasoning:      verdict.Reasoning,
		Confidence:     &confidence,
	}
	if err := s.Ledger.Store(ctx, decision); err != nil {
		slog.Warn("failed to write decision to audit ledger", "error", err)
	}
}

const decisionsRecentLimit = 20

func (s *Server) handleDecisions(c *gin.Context) {
	resp := gin.H{
		"recent":              []audit.Decision{},
		"enabled":             true,
		"model_loaded":        s.Classifier != nil,
		"model_name":          classifierModelName(s.Classifier),
		"last_classification_ms": nil,
	}

	if s.Ledger == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	recent, err := s.Ledger.Recent(c.Request.Context(), decisionsRecentLimit, 0)
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to read recent decisions", err))
		return
	}
	stats, err := s.Ledger.Stats(c.Request.Context())
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to read decision stats", err))
		return
	}

	resp["recent"] = recent
	resp["stats"] = stats
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleShutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "shutdown_initiated"})
	go func() {
		time.Sleep(100 * time.Millisecond)
		os.Exit(0)
	}()
}

type tokenGenerateRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}

type tokenGenerateResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ProjectID string    `json:"project_id"`
}

func (s *Server) handleTokenGenerate(c *gin.Context) {
	if s.Tokens == nil {
		apierr.Respond(c, apierr.New(apierr.CategoryUnavailable, "token manager unavailable"))
		return
	}

	var req tokenGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed token request: "+err.Error())
		return
	}

	tok, err := s.Tokens.Generate(req.ProjectID)
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to generate token", err))
		return
	}

	c.JSON(http.StatusOK, tokenGenerateResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
		ProjectID: tok.ProjectID,
	})
}
