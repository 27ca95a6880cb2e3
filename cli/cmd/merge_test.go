package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pithecene-io/assay/types"
)

// writeBatchFile encodes records into the doubly-encoded batch shape and
// writes it to a temp file.
func writeBatchFile(t *testing.T, numFound int, records ...map[string]any) string {
	t.Helper()

	inner, err := json.Marshal(map[string]any{"results": records})
	if err != nil {
		t.Fatalf("marshal inner: %v", err)
	}
	outer, err := json.Marshal([]string{string(inner)})
	if err != nil {
		t.Fatalf("marshal outer: %v", err)
	}
	batch := map[string]any{
		"content":  []map[string]any{{"text": string(outer)}},
		"numFound": numFound,
	}
	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}

	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write batch file: %v", err)
	}
	return path
}

func TestLoadBatches_SingleObject(t *testing.T) {
	path := writeBatchFile(t, 7, map[string]any{"genome_id": "g1"})

	batches, err := loadBatches([]string{path})
	if err != nil {
		t.Fatalf("loadBatches: %v", err)
	}

	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if batches[0].NumFound != 7 {
		t.Errorf("NumFound = %d, want 7", batches[0].NumFound)
	}
	if len(batches[0].Content) != 1 {
		t.Errorf("got %d content elements, want 1", len(batches[0].Content))
	}
}

func TestLoadBatches_ArrayFile(t *testing.T) {
	data := `[{"content": [], "numFound": 3}, {"content": [], "numFound": 4}]`
	path := filepath.Join(t.TempDir(), "batches.json")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write batch file: %v", err)
	}

	batches, err := loadBatches([]string{path})
	if err != nil {
		t.Fatalf("loadBatches: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].NumFound != 3 || batches[1].NumFound != 4 {
		t.Errorf("NumFound order not preserved: %d, %d", batches[0].NumFound, batches[1].NumFound)
	}
}

func TestLoadBatches_MultipleFilesInOrder(t *testing.T) {
	first := writeBatchFile(t, 1, map[string]any{"genome_id": "g1"})
	second := writeBatchFile(t, 2, map[string]any{"genome_id": "g2"})

	batches, err := loadBatches([]string{first, second})
	if err != nil {
		t.Fatalf("loadBatches: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].NumFound != 1 || batches[1].NumFound != 2 {
		t.Errorf("argument order not preserved")
	}
}

func TestLoadBatches_MissingFile(t *testing.T) {
	_, err := loadBatches([]string{filepath.Join(t.TempDir(), "missing.json")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBatches_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write batch file: %v", err)
	}

	_, err := loadBatches([]string{path})
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestMergeReport_TableLayout(t *testing.T) {
	report := mergeReport{&types.MergeResult{
		Records: []types.ResultRecord{
			{"genome_id": "GCF_000005845.2", "score": 0.98, "organism": "E. coli"},
			{"genome_id": "GCF_000009605.1", "score": 0.91, "organism": "B. subtilis"},
		},
		DuplicatesDropped: 1,
		NumFound:          3,
		BatchesMerged:     2,
	}}

	cols := report.TableColumns()
	want := []string{"genome_id", "organism", "score"}
	if !reflect.DeepEqual(cols, want) {
		t.Errorf("columns = %v, want %v", cols, want)
	}

	rows := report.TableRows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "GCF_000005845.2" || rows[0][2] != "0.98" {
		t.Errorf("first row wrong: %v", rows[0])
	}
	if rows[1][1] != "B. subtilis" {
		t.Errorf("second row wrong: %v", rows[1])
	}
}

func TestMergeReport_SummaryFields(t *testing.T) {
	report := mergeReport{&types.MergeResult{
		Records:           []types.ResultRecord{{"genome_id": "g1"}},
		DuplicatesDropped: 2,
		NumFound:          5,
		BatchesMerged:     3,
		BatchesFailed:     1,
	}}

	fields := report.SummaryFields()
	got := map[string]string{}
	for _, f := range fields {
		got[f.Name] = f.Value
	}
	if got["records"] != "1" || got["duplicates_dropped"] != "2" || got["num_found"] != "5" {
		t.Errorf("summary fields wrong: %v", got)
	}
	if got["batches_merged"] != "3" || got["batches_failed"] != "1" {
		t.Errorf("batch counters wrong: %v", got)
	}
}

func TestMergeReport_EmptyResult(t *testing.T) {
	report := mergeReport{&types.MergeResult{}}
	if cols := report.TableColumns(); cols != nil {
		t.Errorf("empty result should have no columns, got %v", cols)
	}
	if rows := report.TableRows(); len(rows) != 0 {
		t.Errorf("empty result should have no rows, got %v", rows)
	}
}

func TestMergeReport_JSONInlinesResult(t *testing.T) {
	report := mergeReport{&types.MergeResult{NumFound: 4}}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, nested := decoded["MergeResult"]; nested {
		t.Errorf("embedded result should marshal inline: %s", data)
	}
	if decoded["numFound"] != float64(4) {
		t.Errorf("numFound not carried through: %s", data)
	}
}
