package types

// BatchContent is one element of a batch's content list. Text holds a
// JSON-encoded array of strings, each of which is itself a JSON-encoded
// object of shape {"results": [...]} — the double encoding reflects an
// upstream tool-call boundary that serializes its payload as plain text.
type BatchContent struct {
	Text string `json:"text"`
}

// Batch is one page of tool-produced results.
type Batch struct {
	// Content holds the nested encoded payloads, each independently decoded.
	Content []BatchContent `json:"content"`
	// NumFound is the server-side reported total, which may exceed the
	// number of records actually paged into this batch.
	NumFound int `json:"numFound"`
}

// ResultRecord is one domain result item inside a batch. Field set is
// open; identity is the configured key field (genome_id in the observed
// domain).
type ResultRecord map[string]any

// Key returns the record's identity value under field, or "" if absent
// or not a string.
func (r ResultRecord) Key(field string) string {
	if r == nil {
		return ""
	}
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// MergeResult is the immutable output of merging N batches.
type MergeResult struct {
	// Records is the deduplicated result sequence, batch order then
	// within-batch order, first occurrence wins.
	Records []ResultRecord `json:"records"`
	// DuplicatesDropped counts records excluded as duplicates.
	DuplicatesDropped int `json:"duplicate_results_dropped"`
	// NumFound is the sum of batch-reported totals, carried through
	// rather than recomputed from the deduplicated count.
	NumFound int `json:"numFound"`
	// BatchesMerged is the number of batches that decoded successfully.
	BatchesMerged int `json:"batches_merged"`
	// BatchesFailed is the number of batches skipped due to decode errors.
	BatchesFailed int `json:"batches_failed"`
}
