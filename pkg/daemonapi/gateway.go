package daemonapi

import (
	"github.com/gin-gonic/gin"

	"github.com/pilotdev/pilotd/pkg/analytics"
	"github.com/pilotdev/pilotd/pkg/apierr"
	"github.com/pilotdev/pilotd/pkg/cache"
	"github.com/pilotdev/pilotd/pkg/providers"
)

// Gateway is the response cache + analytics + upstream-dispatch path
// (spec.md §4.5, C6/C7) that sits in front of every LLM call. It is
// mounted only when the daemon has at least one provider adapter
// configured; a nil Gateway leaves /api/llm/complete unregistered rather
// than 503-ing every call.
type Gateway struct {
	Cache    *cache.Store
	Rewriter *analytics.Rewriter
	Router   *providers.Router
	Recorder *analytics.Recorder
}

type completeRequest struct {
	Model       string  `json:"model" binding:"required"`
	Prompt      string  `json:"prompt" binding:"required"`
	Temperature float64 `json:"temperature"`
	MaxTokens   uint32  `json:"max_tokens" binding:"required"`
}

type completeResponse struct {
	Model         string `json:"model"`
	OriginalModel string `json:"original_model,omitempty"`
	Content       string `json:"content"`
	InputTokens   int    `json:"input_tokens"`
	OutputTokens  int    `json:"output_tokens"`
	FromCache     bool   `json:"from_cache"`
}

// handleComplete implements spec.md §4.5's pipeline: rewrite → cache key →
// hit/miss → analytics record, in that order, so a rewritten request
// shares a cache entry (and cost basis) with native requests for the
// rewrite target.
func (s *Server) handleComplete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "malformed completion request: "+err.Error())
		return
	}

	effective, original := s.Gateway.Rewriter.Apply(req.Model)

	key := cache.Key(effective, req.Prompt, req.Temperature, req.MaxTokens)

	if entry, ok := s.Gateway.Cache.Get(key); ok {
		s.Gateway.Recorder.Record(analytics.ForHit(entry.Model, original, entry.InputTokens, entry.OutputTokens))
		c.JSON(200, completeResponse{
			Model:         entry.Model,
			OriginalModel: original,
			Content:       entry.Content,
			InputTokens:   entry.InputTokens,
			OutputTokens:  entry.OutputTokens,
			FromCache:     true,
		})
		return
	}

	resp, err := s.Gateway.Router.Dispatch(c.Request.Context(), providers.Request{
		Model:       effective,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		apierr.Respond(c, apierr.Wrap(apierr.CategoryUnavailable, "upstream dispatch failed", err))
		return
	}

	s.Gateway.Cache.Insert(key, cache.Entry{
		Model:        effective,
		Content:      resp.Content,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	})
	s.Gateway.Recorder.Record(analytics.ForMiss(effective, original, resp.InputTokens, resp.OutputTokens))

	c.JSON(200, completeResponse{
		Model:         effective,
		OriginalModel: original,
		Content:       resp.Content,
		InputTokens:   resp.InputTokens,
		OutputTokens:  resp.OutputTokens,
		FromCache:     false,
	})
}

type gatewayStatsResponse struct {
	Cache  cache.Metrics                       `json:"cache"`
	Models map[string]analytics.ModelAggregate `json:"models"`
	Totals analytics.Totals                    `json:"totals"`
}

func (s *Server) handleGatewayStats(c *gin.Context) {
	c.JSON(200, gatewayStatsResponse{
		Cache:  s.Gateway.Cache.Metrics(),
		Models: s.Gateway.Recorder.Snapshot(),
		Totals: s.Gateway.Recorder.Totals(),
	})
}
