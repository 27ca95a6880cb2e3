package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/archive"
	"github.com/pithecene-io/assay/cli/config"
	"github.com/pithecene-io/assay/cli/render"
	"github.com/pithecene-io/assay/client"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/merge"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/types"
)

// MergeCommand returns the merge command.
func MergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge tool-result batch files into one deduplicated result set",
		ArgsUsage: "<batch.json> [batch.json ...]",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "key-field",
				Usage: "Record field used for deduplication",
			},
			&cli.IntFlag{
				Name:  "record-limit-per-batch",
				Usage: "Cap decoded records per batch (0 = no cap)",
			},
			&cli.IntFlag{
				Name:  "total-result-limit",
				Usage: "Cap merged output after deduplication (0 = no cap)",
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "User partition key for archiving",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session partition key for archiving (generated when omitted)",
			},
		}, append(archiveFlags(), RenderFlags()...)...),
		Action: mergeAction,
	}
}

func mergeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("merge requires at least one batch file")
	}

	fileCfg, err := loadFileConfig(c)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	batches, err := loadBatches(c.Args().Slice())
	if err != nil {
		return err
	}

	mergeCfg := resolveMergeConfig(c, fileCfg)

	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = client.NewSessionID()
	}
	meta := &types.SessionMeta{SessionID: sessionID, UserID: c.String("user-id"), Attempt: 1}
	logger := log.NewLogger(meta)
	collector := metrics.NewCollector(sessionID, meta.UserID, "")

	merged := merge.New(mergeCfg, logger, collector).Merge(batches)

	if err := archiveMerged(c, fileCfg, meta, merged, collector); err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	return renderer.Render(mergeReport{merged})
}

// mergeReport wraps a merge result with its table layout: one row per
// deduplicated record, then the merge counters as a summary block.
// JSON and YAML output are the bare MergeResult via the embedding.
type mergeReport struct {
	*types.MergeResult
}

// TableColumns derives column order from the first record: keys sorted
// alphabetically. Records in one result set share a schema, so the
// first record is representative.
func (r mergeReport) TableColumns() []string {
	if len(r.Records) == 0 {
		return nil
	}
	cols := make([]string, 0, len(r.Records[0]))
	for k := range r.Records[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (r mergeReport) TableRows() [][]string {
	cols := r.TableColumns()
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		row := make([]string, len(cols))
		for i, col := range cols {
			if v, ok := rec[col]; ok {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (r mergeReport) SummaryFields() []render.Field {
	return []render.Field{
		{Name: "records", Value: strconv.Itoa(len(r.Records))},
		{Name: "duplicates_dropped", Value: strconv.Itoa(r.DuplicatesDropped)},
		{Name: "num_found", Value: strconv.Itoa(r.NumFound)},
		{Name: "batches_merged", Value: strconv.Itoa(r.BatchesMerged)},
		{Name: "batches_failed", Value: strconv.Itoa(r.BatchesFailed)},
	}
}

// loadBatches reads batch files in argument order. Each file holds one
// batch object or a JSON array of batches.
func loadBatches(paths []string) ([]types.Batch, error) {
	var batches []types.Batch
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read batch file: %w", err)
		}

		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var page []types.Batch
			if err := json.Unmarshal(trimmed, &page); err != nil {
				return nil, fmt.Errorf("invalid batch file %s: %w", path, err)
			}
			batches = append(batches, page...)
			continue
		}

		var batch types.Batch
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("invalid batch file %s: %w", path, err)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func resolveMergeConfig(c *cli.Context, fileCfg *config.Config) merge.Config {
	cfg := merge.Config{
		KeyField:            fileCfg.Merge.KeyField,
		RecordLimitPerBatch: fileCfg.Merge.RecordLimitPerBatch,
		TotalResultLimit:    fileCfg.Merge.TotalResultLimit,
	}
	if v := c.String("key-field"); v != "" {
		cfg.KeyField = v
	}
	if c.IsSet("record-limit-per-batch") {
		cfg.RecordLimitPerBatch = c.Int("record-limit-per-batch")
	}
	if c.IsSet("total-result-limit") {
		cfg.TotalResultLimit = c.Int("total-result-limit")
	}
	return cfg
}

// archiveMerged persists the merged result when an archive path is
// configured. No path means no archiving.
func archiveMerged(c *cli.Context, fileCfg *config.Config, meta *types.SessionMeta, merged *types.MergeResult, collector *metrics.Collector) error {
	store, err := buildArchiveStore(c, fileCfg, meta)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}

	instrumented := archive.NewInstrumentedStore(store, collector)
	defer func() { _ = instrumented.Close() }()

	return instrumented.WriteResults(context.Background(), merged)
}

// buildArchiveStore constructs the store named by the archive flags,
// falling back to file config per field. A nil store with a nil error
// means archiving is not configured.
func buildArchiveStore(c *cli.Context, fileCfg *config.Config, meta *types.SessionMeta) (archive.Store, error) {
	backend := c.String("archive-backend")
	path := c.String("archive-path")
	dataset := c.String("archive-dataset")
	region := c.String("archive-s3-region")

	if backend == "" {
		backend = fileCfg.Archive.Backend
	}
	if path == "" {
		path = fileCfg.Archive.Path
	}
	if dataset == "" {
		dataset = fileCfg.Archive.Dataset
	}
	if region == "" {
		region = fileCfg.Archive.Region
	}
	if path == "" {
		return nil, nil
	}

	cfg := archive.Config{
		Dataset:   dataset,
		User:      meta.UserID,
		Day:       archive.DeriveDay(time.Now()),
		SessionID: meta.SessionID,
	}

	switch backend {
	case "fs", "":
		return archive.NewLodeStore(cfg, path)
	case "s3":
		bucket, prefix := archive.ParseS3Path(path)
		s3cfg := archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       region,
			Endpoint:     fileCfg.Archive.Endpoint,
			UsePathStyle: fileCfg.Archive.S3PathStyle,
		}
		return archive.NewS3Store(cfg, s3cfg)
	default:
		return nil, fmt.Errorf("unknown archive-backend: %s (must be fs or s3)", backend)
	}
}

// archiveFlags are shared by the commands that can persist records.
func archiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "archive-backend",
			Usage: "Archive storage backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Archive path (fs: directory, s3: bucket/prefix); empty disables archiving",
		},
		&cli.StringFlag{
			Name:  "archive-dataset",
			Usage: "Archive dataset ID",
		},
		&cli.StringFlag{
			Name:  "archive-s3-region",
			Usage: "AWS region for the s3 backend",
		},
	}
}
