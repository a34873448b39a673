package knowledge

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const minExtractedMessageLen = 50

// classificationPatterns is the fixed set of keyword regexes spec.md
// §4.9 names, checked in this order so "credential" always wins over a
// more generic match (the same highest-priority-wins idea the permission
// decider's credential check uses).
var classificationPatterns = []struct {
	knowledgeType string
	pattern       *regexp.Regexp
}{
	{"credential", regexp.MustCompile(`(?i)\b(password|api[_-]?key|token|secret|credential)\b`)},
	{"architecture", regexp.MustCompile(`(?i)\b(architecture|design pattern|component|module structure)\b`)},
	{"decision", regexp.MustCompile(`(?i)\b(decided|decision|chose|trade-?off|we will|we'll go with)\b`)},
	{"implementation", regexp.MustCompile(`(?i)\b(implement|function|class|refactor|bug ?fix|wrote)\b`)},
	{"configuration", regexp.MustCompile(`(?i)\b(config|environment variable|\.env|setting)\b`)},
	{"issue", regexp.MustCompile(`(?i)\b(issue|bug|error|crash|fails?)\b`)},
}

// knownAgentNames is the fixed roster spec.md's glossary names.
var knownAgentNames = regexp.MustCompile(`(?i)\b(rust-specialist|go-specialist|python-specialist|javascript-specialist|flutter-specialist|chief-architect)\b`)

func classify(paragraph string) string {
	for _, c := range classificationPatterns {
		if c.pattern.MatchString(paragraph) {
			return c.knowledgeType
		}
	}
	return "general"
}

func detectAgent(paragraph string) string {
	return strings.ToLower(knownAgentNames.FindString(paragraph))
}

// CompactionMetadata is the fixed metadata shape stored with every item
// pre_compaction extracts.
type CompactionMetadata struct {
	ConversationIndex int       `json:"conversationIndex"`
	ExtractedAt       time.Time `json:"extractedAt"`
}

// PreCompactionResult is what pre_compaction returns.
type PreCompactionResult struct {
	IDs   []string
	Count int
}

// PreCompaction splits conversation on paragraph boundaries, drops
// messages shorter than 50 chars, classifies and stores each survivor
// (spec.md §4.9).
func (s *Store) PreCompaction(ctx stdctx.Context, conversation, projectID, sessionID string) (PreCompactionResult, error) {
	paragraphs := splitParagraphs(conversation)

	var reqs []ItemRequest
	for i, p := range paragraphs {
		trimmed := strings.TrimSpace(p)
		if len(trimmed) < minExtractedMessageLen {
			continue
		}

		meta := CompactionMetadata{ConversationIndex: i, ExtractedAt: time.Now().UTC()}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return PreCompactionResult{}, fmt.Errorf("marshal compaction metadata: %w", err)
		}

		reqs = append(reqs, ItemRequest{
			Text:          trimmed,
			KnowledgeType: classify(trimmed),
			ProjectID:     projectID,
			SessionID:     sessionID,
			Agent:         detectAgent(trimmed),
			Metadata:      string(metaJSON),
		})
	}

	if len(reqs) == 0 {
		return PreCompactionResult{}, nil
	}

	ids, err := s.StoreBatch(ctx, reqs)
	if err != nil {
		return PreCompactionResult{}, fmt.Errorf("pre_compaction store_batch: %w", err)
	}
	return PreCompactionResult{IDs: ids, Count: len(ids)}, nil
}

func splitParagraphs(conversation string) []string {
	normalized := strings.ReplaceAll(conversation, "\r\n", "\n")
	return strings.Split(normalized, "\n\n")
}

// postCompactionSearchThreshold is spec.md §4.9's fixed similarity floor
// for the semantic half of post_compaction.
const postCompactionSearchThreshold = 0.5

// recentProjectItemCount is the fixed count of most-recent project items
// post_compaction always includes alongside the semantic search.
const recentProjectItemCount = 5

// CompactionSummary is post_compaction's fixed summary shape (spec.md
// §4.9): counts by type and agent, plus truncated highlight strings.
type CompactionSummary struct {
	TotalItems     int              `json:"total_items"`
	ByType         map[string]int64 `json:"by_type"`
	ByAgent        map[string]int64 `json:"by_agent"`
	TopDecisions   []string         `json:"top_decisions"`
	RecentActivity []string         `json:"recent_activity"`
}

// PostCompactionResult is what post_compaction returns: a fresh search
// against currentTask at a fixed 0.5 threshold, the project's 5 most
// recent items, and a derived summary.
type PostCompactionResult struct {
	SearchResults   []SearchResult
	RecentKnowledge []Item
	Summary         CompactionSummary
}

// PostCompaction searches for currentTask, fetches the project's most
// recent knowledge, and summarizes the result set (spec.md §4.9).
func (s *Store) PostCompaction(ctx stdctx.Context, currentTask, projectID string, limit int) (PostCompactionResult, error) {
	searchResults, err := s.Search(ctx, currentTask, limit, postCompactionSearchThreshold, SearchFilters{ProjectID: projectID})
	if err != nil {
		return PostCompactionResult{}, fmt.Errorf("post_compaction search: %w", err)
	}

	recent, err := s.GetProjectKnowledge(ctx, projectID, "", recentProjectItemCount)
	if err != nil {
		return PostCompactionResult{}, fmt.Errorf("post_compaction get_project_knowledge: %w", err)
	}

	return PostCompactionResult{
		SearchResults:   searchResults,
		RecentKnowledge: recent,
		Summary:         summarize(searchResults, recent),
	}, nil
}

func summarize(searchResults []SearchResult, recent []Item) CompactionSummary {
	summary := CompactionSummary{
		TotalItems: len(recent),
		ByType:     make(map[string]int64),
		ByAgent:    make(map[string]int64),
	}

	for _, item := range recent {
		summary.ByType[item.KnowledgeType]++
		if item.Agent != "" {
			summary.ByAgent[item.Agent]++
		}
		if item.KnowledgeType == "decision" {
			summary.TopDecisions = append(summary.TopDecisions, truncate(item.Text, 100))
		}
		summary.RecentActivity = append(summary.RecentActivity, truncate(item.Text, 80))
	}

	for _, result := range searchResults {
		summary.ByType[result.Item.KnowledgeType]++
	}

	return summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
