package archive

import (
	"context"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

// LodeStore is a Lode-backed implementation of Store.
// Uses Lode's HiveLayout with partition keys: user/day/session_id/record_kind.
type LodeStore struct {
	dataset lode.Dataset
	config  Config
}

// NewLodeStore creates a Lode store with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeStore(cfg Config, root string) (*LodeStore, error) {
	return NewLodeStoreWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeStoreWithFactory creates a Lode store with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeStoreWithFactory(cfg Config, factory lode.StoreFactory) (*LodeStore, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}

	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout("user", "day", "session_id", "record_kind"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, err
	}

	return &LodeStore{
		dataset: ds,
		config:  cfg,
	}, nil
}

// WriteResults writes each merged record plus one merge summary record,
// in one dataset write so a partial merge never lands without its
// accounting.
func (s *LodeStore) WriteResults(ctx context.Context, merged *types.MergeResult) error {
	records := make([]any, 0, len(merged.Records)+1)
	for _, record := range merged.Records {
		records = append(records, toResultRecordMap(record, s.config))
	}
	records = append(records, toMergeSummaryMap(merged, s.config))

	_, err := s.dataset.Write(ctx, records, lode.Metadata{})
	return err
}

// WriteTranscript writes the session outcome record.
func (s *LodeStore) WriteTranscript(ctx context.Context, result *session.Result) error {
	records := []any{toTranscriptMap(result, s.config)}
	_, err := s.dataset.Write(ctx, records, lode.Metadata{})
	return err
}

// Close releases store resources.
func (s *LodeStore) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// Verify LodeStore implements Store.
var _ Store = (*LodeStore)(nil)
