package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/cvsearch/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:       "golang kubernetes",
		K:           4,
		Alpha:       0.9,
		Source:      models.SourceSemantic,
		QueryTimeMs: 12,
		Total:       2,
		Results: []*models.DocumentScore{
			{
				DocumentID: "docA", Score: 0.815, MeanSimilarity: 0.85, Coverage: 0.5, Count: 2,
				SourcePath: "/cvs/alice.pdf", Rank: 1,
				Evidence: []models.Evidence{
					{Text: "Golang\nmicroservices", Similarity: 0.9},
					{Text: "Kubernetes operator", Similarity: 0.8},
				},
			},
			{
				DocumentID: "docB", Score: 0.5225, MeanSimilarity: 0.525, Coverage: 0.5, Count: 2, Rank: 2,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("ParseFormat(%q): got err %v, want ErrInvalidArgument", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.K != 4 || len(decoded.Results) != 2 {
		t.Errorf("decoded: %+v", decoded)
	}
	if decoded.Results[0].DocumentID != "docA" || decoded.Results[0].Rank != 1 {
		t.Errorf("first result: %+v", decoded.Results[0])
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`Found 2 documents for "golang kubernetes"`,
		"k=4, alpha=0.90",
		"#1  alice.pdf",
		"Score: 0.8150",
		"2 matched chunks",
		"File: /cvs/alice.pdf",
		"[0.900] Golang microservices",
		"#2  docB",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "alice.pdf") > strings.Index(out, "docB") {
		t.Error("results are not in rank order")
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if lines[0] != "1\t0.8150\t2\talice.pdf" {
		t.Errorf("line 1: %q", lines[0])
	}
}

func TestWriteSearchResults_Empty(t *testing.T) {
	for _, format := range []OutputFormat{OutputText, OutputCompact} {
		var buf bytes.Buffer
		if err := WriteSearchResults(&buf, &models.SearchResponse{Query: "cobol"}, format); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != NoResultsMessage {
			t.Errorf("%s: got %q", format, buf.String())
		}
	}
}

func TestWriteSearchResults_TruncatesEvidence(t *testing.T) {
	resp := sampleResponse()
	long := strings.Repeat("é", evidenceLen+50)
	resp.Results[0].Evidence = []models.Evidence{
		{Text: long, Similarity: 0.9},
		{Text: "b", Similarity: 0.8},
		{Text: "c", Similarity: 0.7},
		{Text: "d", Similarity: 0.6},
		{Text: "e", Similarity: 0.5},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, strings.Repeat("é", evidenceLen)+"...") {
		t.Error("long evidence not truncated on a rune boundary")
	}
	if !strings.Contains(out, "... 2 more") {
		t.Errorf("expected overflow marker:\n%s", out)
	}
}

func TestWriteIngestReport(t *testing.T) {
	report := &models.IngestReport{Root: "/cvs", Duration: 1500 * time.Millisecond}
	report.Add(models.FileResult{SourcePath: "/cvs/a.pdf", DocumentID: "a", Chunks: 4})
	report.Add(models.FileResult{SourcePath: "/cvs/b.pdf", Skipped: true})
	report.Add(models.FileResult{SourcePath: "/cvs/c.pdf", Err: fmt.Errorf("c.pdf: %w", models.ErrExtraction)})

	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Ingested /cvs in 1.5s", "1 ingested, 1 unchanged, 1 failed, 4 chunks", "/cvs/c.pdf: c.pdf: text extraction failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteIngestReport(&buf, report, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "ingested=1 skipped=1 failed=1 chunks=4" {
		t.Errorf("compact: %q", got)
	}

	buf.Reset()
	if err := WriteIngestReport(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"error": "c.pdf: text extraction failed"`) {
		t.Errorf("json report should carry the error message:\n%s", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	status := map[string]interface{}{
		"documents":        float64(3),
		"disk_usage_bytes": float64(12345678),
		"config":           map[string]interface{}{"alpha": 0.9, "vector_backend": "memory"},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	want := "config:\n  alpha: 0.9\n  vector_backend: memory\ndisk_usage_bytes: 12345678\ndocuments: 3\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}
