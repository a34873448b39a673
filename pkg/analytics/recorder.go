package analytics

import "sync"

// ApiCallRecord is one recorded request, matching spec.md §3 exactly.
// OriginalModel is set iff an override rule rewrote the request's model.
type ApiCallRecord struct {
	Model         string
	OriginalModel string
	InputTokens   int
	OutputTokens  int
	CacheHit      bool
	ActualCost    float64
	WouldBeCost   float64
	Savings       float64
}

// ModelAggregate is the per-model rollup Recorder.Snapshot returns.
type ModelAggregate struct {
	Requests    int64
	CacheHits   int64
	CacheMisses int64
	ActualCost  float64
	WouldBeCost float64
	Savings     float64
}

// HitRate returns CacheHits / Requests, or 0 for a model with no requests.
func (a ModelAggregate) HitRate() float64 {
	if a.Requests == 0 {
		return 0
	}
	return float64(a.CacheHits) / float64(a.Requests)
}

// Totals is the cross-model rollup.
type Totals struct {
	Requests    int64
	CacheHits   int64
	CacheMisses int64
	ActualCost  float64
	WouldBeCost float64
	Savings     float64
}

// Recorder aggregates ApiCallRecords per model and in total. A single
// shared mutex guards it — spec.md §9: "Concurrent recording is safe
// (single writer or shared mutex)."
type Recorder struct {
	mu      sync.Mutex
	byModel map[string]*ModelAggregate
	total   Totals
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{byModel: make(map[string]*ModelAggregate)}
}

// Record folds rec into the per-model and total aggregates.
func (r *Recorder) Record(rec ApiCallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg, ok := r.byModel[rec.Model]
	if !ok {
		agg = &ModelAggregate{}
		r.byModel[rec.Model] = agg
	}

	agg.Requests++
	r.total.Requests++
	if rec.CacheHit {
		agg.CacheHits++
		r.total.CacheHits++
	} else {
		agg.CacheMisses++
		r.total.CacheMisses++
	}
	agg.ActualCost += rec.ActualCost
	agg.WouldBeCost += rec.WouldBeCost
	agg.Savings += rec.Savings
	r.total.ActualCost += rec.ActualCost
	r.total.WouldBeCost += rec.WouldBeCost
	r.total.Savings += rec.Savings
}

// ForMiss builds the record a cache miss produces: dispatched upstream, so
// actual_cost == would_be_cost and savings == 0.
func ForMiss(model, originalModel string, inputTokens, outputTokens int) ApiCallRecord {
	cost := Cost(model, inputTokens, outputTokens)
	return ApiCallRecord{
		Model:         model,
		OriginalModel: originalModel,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		CacheHit:      false,
		ActualCost:    cost,
		WouldBeCost:   cost,
		Savings:       0,
	}
}

// ForHit builds the record a cache hit produces: no upstream dispatch, so
// actual_cost == 0 and savings == would_be_cost.
func ForHit(model, originalModel string, inputTokens, outputTokens int) ApiCallRecord {
	cost := Cost(model, inputTokens, outputTokens)
	return ApiCallRecord{
		Model:         model,
		OriginalModel: originalModel,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		CacheHit:      true,
		ActualCost:    0,
		WouldBeCost:   cost,
		Savings:       cost,
	}
}

// Snapshot returns a copy of the current per-model aggregates.
func (r *Recorder) Snapshot() map[string]ModelAggregate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ModelAggregate, len(r.byModel))
	for model, agg := range r.byModel {
		out[model] = *agg
	}
	return out
}

// Totals returns a copy of the cross-model totals.
func (r *Recorder) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
