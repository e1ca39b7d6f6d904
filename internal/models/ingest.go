package models

import (
	"encoding/json"
	"errors"
	"time"
)

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	DocumentID string `json:"document_id,omitempty"`
	SourcePath string `json:"source_path"`
	Chunks     int    `json:"chunks"`
	Skipped    bool   `json:"skipped,omitempty"`
	Err        error  `json:"-"`
}

// Failed reports whether ingestion of the file failed.
func (r FileResult) Failed() bool { return r.Err != nil }

// MarshalJSON renders Err as a string.
func (r FileResult) MarshalJSON() ([]byte, error) {
	type alias FileResult
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores Err from its string form, so reports survive a round trip
// through the HTTP API.
func (r *FileResult) UnmarshalJSON(data []byte) error {
	type alias FileResult
	var in struct {
		alias
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = FileResult(in.alias)
	if in.Error != "" {
		r.Err = errors.New(in.Error)
	}
	return nil
}

// IngestReport summarizes a directory ingestion.
type IngestReport struct {
	Root      string        `json:"root"`
	Results   []FileResult  `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration_ns"`
}

// Add records a file result and updates the counters.
func (r *IngestReport) Add(res FileResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Err != nil:
		r.Failed++
	case res.Skipped:
		r.Skipped++
	default:
		r.Succeeded++
		r.Chunks += res.Chunks
	}
}
