package models

// ChunkHit is one nearest-neighbour result returned by a vector store for a query.
type ChunkHit struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	SourcePath string  `json:"source_path,omitempty"`
}

// Evidence is a matched chunk backing a document score.
type Evidence struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// DocumentScore is the aggregated relevance of one document for one query.
type DocumentScore struct {
	DocumentID     string     `json:"document_id"`
	Score          float64    `json:"score"`
	MeanSimilarity float64    `json:"mean_similarity"`
	Coverage       float64    `json:"coverage"`
	Count          int        `json:"count"`
	SourcePath     string     `json:"source_path,omitempty"`
	Evidence       []Evidence `json:"evidence"`
	Rank           int        `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results     []*DocumentScore `json:"results"`
	Total       int              `json:"total"`
	QueryTimeMs int64            `json:"query_time_ms"`
	Query       string           `json:"query"`
	K           int              `json:"k"`
	Alpha       float64          `json:"alpha"`
	Source      string           `json:"source"`
}
