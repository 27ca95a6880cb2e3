// Package merge combines paginated tool-result batches into a single
// deduplicated result set with duplicate accounting.
//
// Each batch carries nested encoded payloads: the content text is a
// JSON array of strings, each of which is itself a JSON-encoded object
// holding a results array. The double encoding reflects an upstream
// tool-call boundary that only transports plain text, so decoding runs
// in two explicit stages and failures are isolated per element.
package merge

import (
	"encoding/json"

	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/types"
)

// DefaultKeyField is the identity key of the observed domain.
const DefaultKeyField = "genome_id"

// Config configures a Merger.
type Config struct {
	// KeyField is the record field that uniquely identifies a result.
	// Defaults to genome_id.
	KeyField string
	// RecordLimitPerBatch caps how many decoded records are considered
	// from a single batch, applied at decode time before deduplication.
	// 0 means no cap.
	RecordLimitPerBatch int
	// TotalResultLimit truncates the merged output after deduplication.
	// Duplicate accounting runs over all considered records regardless.
	// 0 means no cap.
	TotalResultLimit int
}

// resultsEnvelope is the inner decoded shape of one batch payload string.
type resultsEnvelope struct {
	Results []types.ResultRecord `json:"results"`
}

// Merger merges result batches. Pure aside from logging on decode
// failures; safe to invoke concurrently on independent batch lists.
type Merger struct {
	config    Config
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates a Merger. collector may be nil.
func New(cfg Config, logger *log.Logger, collector *metrics.Collector) *Merger {
	if cfg.KeyField == "" {
		cfg.KeyField = DefaultKeyField
	}
	return &Merger{
		config:    cfg,
		logger:    logger,
		collector: collector,
	}
}

// Merge flattens all decoded records across batches, batch order then
// within-batch order, and deduplicates by the configured identity key:
// first occurrence wins, every later occurrence increments
// DuplicatesDropped and is excluded from the output.
//
// A batch whose payload fails to decode contributes zero records for the
// failing elements and is logged, but never aborts the merge of the
// remaining batches. NumFound is the sum of the batches' own reported
// totals, not recomputed from the deduplicated count.
func (m *Merger) Merge(batches []types.Batch) *types.MergeResult {
	result := &types.MergeResult{
		Records: make([]types.ResultRecord, 0),
	}

	seen := make(map[string]struct{})

	for i, batch := range batches {
		records, failed := m.decodeBatch(i, batch)
		if failed {
			result.BatchesFailed++
			m.collector.IncBatchFailed()
		} else {
			result.BatchesMerged++
		}
		result.NumFound += batch.NumFound

		for _, record := range records {
			key := record.Key(m.config.KeyField)
			if key != "" {
				if _, dup := seen[key]; dup {
					result.DuplicatesDropped++
					continue
				}
				seen[key] = struct{}{}
			}
			result.Records = append(result.Records, record)
		}
	}

	m.collector.AddDuplicatesDropped(int64(result.DuplicatesDropped))

	if limit := m.config.TotalResultLimit; limit > 0 && len(result.Records) > limit {
		result.Records = result.Records[:limit]
	}

	return result
}

// decodeBatch runs the two-stage decode for one batch and applies the
// per-batch record cap. failed is true when any element failed to decode.
func (m *Merger) decodeBatch(index int, batch types.Batch) (records []types.ResultRecord, failed bool) {
	limit := m.config.RecordLimitPerBatch

	for _, content := range batch.Content {
		// Stage one: the content text is a JSON array of strings.
		var payloads []string
		if err := json.Unmarshal([]byte(content.Text), &payloads); err != nil {
			m.logger.Warn("batch payload decode failed", map[string]any{
				"batch": index,
				"stage": "outer",
				"error": err.Error(),
			})
			failed = true
			continue
		}

		// Stage two: each string is a JSON object carrying results.
		for j, payload := range payloads {
			var envelope resultsEnvelope
			if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
				m.logger.Warn("batch payload decode failed", map[string]any{
					"batch":   index,
					"stage":   "inner",
					"element": j,
					"error":   err.Error(),
				})
				failed = true
				continue
			}

			for _, record := range envelope.Results {
				if limit > 0 && len(records) >= limit {
					return records, failed
				}
				records = append(records, record)
			}
		}
	}

	return records, failed
}
