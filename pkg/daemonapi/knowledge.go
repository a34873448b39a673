package daemonapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilotdev/pilotd/pkg/apierr"
	"github.com/pilotdev/pilotd/pkg/knowledge"
)

type knowledgeStoreRequest struct {
	Text          string `json:"text" binding:"required"`
	KnowledgeType string `json:"knowledge_type"`
	ProjectID     string `json:"project_id"`
	SessionID     string `json:"session_id"`
	Agent         string `json:"agent"`
	Metadata      string `json:"metadata"`
}

func (s *Server) handleKnowledgeStore(c *gin.Context) {
	var req knowledgeStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed knowledge store request: "+err.Error())
		return
	}

	id, err := s.Knowledge.Store(c.Request.Context(), knowledge.ItemRequest{
		Text:          req.Text,
		KnowledgeType: req.KnowledgeType,
		ProjectID:     req.ProjectID,
		SessionID:     req.SessionID,
		Agent:         req.Agent,
		Metadata:      req.Metadata,
	})
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to store knowledge item", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

type knowledgeSearchRequest struct {
	Query         string  `json:"query" binding:"required"`
	Limit         int     `json:"limit"`
	Threshold     float32 `json:"threshold"`
	KnowledgeType string  `json:"knowledge_type"`
	ProjectID     string  `json:"project_id"`
	Agent         string  `json:"agent"`
}

const defaultSearchLimit = 10

func (s *Server) handleKnowledgeSearch(c *gin.Context) {
	var req knowledgeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed knowledge search request: "+err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	results, err := s.Knowledge.Search(c.Request.Context(), req.Query, req.Limit, req.Threshold, knowledge.SearchFilters{
		ProjectID:     req.ProjectID,
		KnowledgeType: req.KnowledgeType,
		Agent:         req.Agent,
	})
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "knowledge search failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleKnowledgeStats(c *gin.Context) {
	stats, err := s.Knowledge.Stats(c.Request.Context())
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryInternal, "failed to read knowledge stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}
