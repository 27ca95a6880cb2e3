package archive

import (
	"context"

	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

// InstrumentedStore wraps a Store and records write metrics. Each
// WriteResults/WriteTranscript call increments archive_write_success or
// archive_write_failure on the metrics collector.
type InstrumentedStore struct {
	inner     Store
	collector *metrics.Collector
}

// NewInstrumentedStore wraps a store with metrics instrumentation.
func NewInstrumentedStore(inner Store, collector *metrics.Collector) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, collector: collector}
}

// WriteResults delegates to the inner store and records success or failure.
func (s *InstrumentedStore) WriteResults(ctx context.Context, merged *types.MergeResult) error {
	err := s.inner.WriteResults(ctx, merged)
	if err != nil {
		s.collector.IncArchiveWriteFailure()
	} else {
		s.collector.IncArchiveWriteSuccess()
	}
	return err
}

// WriteTranscript delegates to the inner store and records success or failure.
func (s *InstrumentedStore) WriteTranscript(ctx context.Context, result *session.Result) error {
	err := s.inner.WriteTranscript(ctx, result)
	if err != nil {
		s.collector.IncArchiveWriteFailure()
	} else {
		s.collector.IncArchiveWriteSuccess()
	}
	return err
}

// Close delegates to the inner store.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedStore implements Store.
var _ Store = (*InstrumentedStore)(nil)
