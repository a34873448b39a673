package context

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"
)

// PreviousOutputsClient queries the knowledge store for prior agent
// outputs relevant to an issue. The broker talks to it over the daemon
// HTTP API rather than linking the knowledge store directly (spec.md
// §4.8); failures degrade to an empty slice, never an error.
type PreviousOutputsClient interface {
	SearchImplementationOutputs(ctx stdctx.Context, issueID string) ([]string, error)
}

// SoftLatencyTarget is gather_context's advisory latency budget.
const SoftLatencyTarget = 100 * time.Millisecond

// Broker implements gather_context (C10): assembles project structure,
// relevant files, git state, previous outputs, and metadata behind a
// bounded LRU cache.
type Broker struct {
	walks   *walkCache
	cache   *lruCache
	outputs PreviousOutputsClient
}

// NewBroker constructs a Broker. outputs may be nil, in which case
// previous_outputs is always empty (useful for tests and for a daemon
// running without the knowledge API reachable).
func NewBroker(outputs PreviousOutputsClient) *Broker {
	return &Broker{
		walks:   newWalkCache(),
		cache:   newLRUCache(DefaultCacheByteBudget),
		outputs: outputs,
	}
}

// GatherContext returns the cached context for (issueID, agentType) if
// present and fresh, otherwise assembles and caches a new one.
func (b *Broker) GatherContext(ctx stdctx.Context, projectDir, issueID, agentType string) (Context, error) {
	if cached, ok := b.cache.get(issueID, agentType); ok {
		return cached, nil
	}

	root := findProjectRoot(projectDir)

	structure, err := b.walks.structureFor(root)
	if err != nil {
		return Context{}, fmt.Errorf("walk project structure at %q: %w", root, err)
	}

	relevant := gatherRelevantFiles(root, structure, agentType)
	git := gatherGitContext(root)
	projectType := detectProjectType(structure)
	metadata := gatherMetadata(root, projectType)
	previous := b.gatherPreviousOutputs(ctx, issueID)

	assembled := Context{
		IssueID:         issueID,
		AgentType:       agentType,
		Structure:       structure,
		RelevantFiles:   relevant,
		Git:             git,
		PreviousOutputs: previous,
		Metadata:        metadata,
		GatheredAt:      time.Now().UTC(),
	}

	b.cache.insert(issueID, agentType, assembled)
	return assembled, nil
}

func (b *Broker) gatherPreviousOutputs(ctx stdctx.Context, issueID string) []string {
	if b.outputs == nil {
		return nil
	}
	outputs, err := b.outputs.SearchImplementationOutputs(ctx, issueID)
	if err != nil {
		slog.Warn("previous-outputs query failed, continuing with none", "issue_id", issueID, "error", err)
		return nil
	}
	return outputs
}

// ClearCache removes every cached context for issueID, across all
// agent_types.
func (b *Broker) ClearCache(issueID string) {
	b.cache.clear(issueID)
}
