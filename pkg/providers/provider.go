// Package providers implements the upstream LLM dispatch layer the
// response cache (C6) sits in front of: a common Provider interface plus
// one adapter per upstream family, selected by model-name prefix.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUpstreamUnavailable wraps any non-2xx or transport failure from an
// upstream provider. Per spec.md §7, upstream failures are returned
// verbatim to the caller and still cached — they are not internal errors.
var ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

// Request is a provider-agnostic chat completion request. It carries
// exactly the fields the cache key is sensitive to (spec.md §4.5).
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   uint32
}

// Response is a provider-agnostic chat completion response.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider dispatches a chat completion request to one upstream LLM
// family.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Router selects a Provider by the request model's prefix.
type Router struct {
	anthropic Provider
	openai    Provider
	bedrock   Provider
}

// NewRouter wires the three provider adapters SPEC_FULL.md's domain
// stack names. Any adapter may be nil if its credentials are not
// configured; routing to a nil adapter returns ErrUpstreamUnavailable.
func NewRouter(anthropic, openai, bedrock Provider) *Router {
	return &Router{anthropic: anthropic, openai: openai, bedrock: bedrock}
}

// Dispatch selects a provider by model-name prefix and calls it. The
// "bedrock/" routing prefix is stripped before the request reaches
// BedrockProvider, whose InvokeModel calls expect a bare Bedrock model ID.
func (r *Router) Dispatch(ctx context.Context, req Request) (Response, error) {
	provider, err := r.route(req.Model)
	if err != nil {
		return Response{}, err
	}
	if strings.HasPrefix(req.Model, "bedrock/") {
		req.Model = strings.TrimPrefix(req.Model, "bedrock/")
	}
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, req.Model, err)
	}
	return resp, nil
}

func (r *Router) route(model string) (Provider, error) {
	switch {
	case strings.HasPrefix(model, "claude-"):
		if r.anthropic == nil {
			return nil, fmt.Errorf("%w: anthropic provider not configured", ErrUpstreamUnavailable)
		}
		return r.anthropic, nil
	case strings.HasPrefix(model, "bedrock/"):
		if r.bedrock == nil {
			return nil, fmt.Errorf("%w: bedrock provider not configured", ErrUpstreamUnavailable)
		}
		return r.bedrock, nil
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "deepseek-") || strings.HasPrefix(model, "azure/"):
		if r.openai == nil {
			return nil, fmt.Errorf("%w: openai-compatible provider not configured", ErrUpstreamUnavailable)
		}
		return r.openai, nil
	default:
		return nil, fmt.Errorf("%w: no provider registered for model %q", ErrUpstreamUnavailable, model)
	}
}
