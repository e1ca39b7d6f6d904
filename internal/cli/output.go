// Package cli renders search responses and ingestion reports for the cvsearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per ranked document.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// NoResultsMessage is printed when a query matches nothing.
const NoResultsMessage = "No matching documents found."

const (
	evidencePerResult = 3
	evidenceLen       = 160
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json): %w", s, models.ErrInvalidArgument)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a ranked response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		return writeSearchResultsCompact(w, response)
	default:
		return writeSearchResultsText(w, response)
	}
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) error {
	if len(response.Results) == 0 {
		_, err := fmt.Fprintln(w, NoResultsMessage)
		return err
	}
	for _, r := range response.Results {
		if _, err := fmt.Fprintf(w, "%d\t%.4f\t%d\t%s\n", r.Rank, r.Score, r.Count, displayName(r)); err != nil {
			return err
		}
	}
	return nil
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) error {
	if len(response.Results) == 0 {
		_, err := fmt.Fprintf(w, "\n%s\n", NoResultsMessage)
		return err
	}
	fmt.Fprintf(w, "\nFound %d documents for %q in %dms (k=%d, alpha=%.2f, %s)\n\n",
		response.Total, response.Query, response.QueryTimeMs, response.K, response.Alpha, response.Source)
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d  %s\n", r.Rank, displayName(r))
		fmt.Fprintf(w, "Score: %.4f (mean similarity %.4f, coverage %.4f, %d matched chunks)\n",
			r.Score, r.MeanSimilarity, r.Coverage, r.Count)
		if r.SourcePath != "" {
			fmt.Fprintf(w, "File: %s\n", r.SourcePath)
		}
		fmt.Fprintf(w, "ID: %s\n", r.DocumentID)
		for i, ev := range r.Evidence {
			if i == evidencePerResult {
				fmt.Fprintf(w, "  ... %d more\n", len(r.Evidence)-evidencePerResult)
				break
			}
			fmt.Fprintf(w, "  [%.3f] %s\n", ev.Similarity, utils.Truncate(oneLine(ev.Text), evidenceLen))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func displayName(r *models.DocumentScore) string {
	if r.SourcePath != "" {
		return filepath.Base(r.SourcePath)
	}
	return r.DocumentID
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriteIngestReport writes an ingestion summary to w in the given format.
func WriteIngestReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, report)
	case OutputCompact:
		_, err := fmt.Fprintf(w, "ingested=%d skipped=%d failed=%d chunks=%d\n",
			report.Succeeded, report.Skipped, report.Failed, report.Chunks)
		return err
	}
	fmt.Fprintf(w, "Ingested %s in %s\n", report.Root, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  %d ingested, %d unchanged, %d failed, %d chunks\n",
		report.Succeeded, report.Skipped, report.Failed, report.Chunks)
	var failed []models.FileResult
	for _, res := range report.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	fmt.Fprintln(w, "Failed files:")
	for _, res := range failed {
		fmt.Fprintf(w, "  %s: %v\n", res.SourcePath, res.Err)
	}
	return nil
}

// WriteStatus writes a status map (as returned by GET /api/v1/status) to w.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	writeMap(w, "", status)
	return nil
}

func writeMap(w io.Writer, indent string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nested, ok := m[k].(map[string]interface{}); ok {
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeMap(w, indent+"  ", nested)
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, k, formatValue(m[k]))
	}
}

// formatValue prints whole JSON numbers without an exponent.
func formatValue(v interface{}) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}
