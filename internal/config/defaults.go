package config

// Documented defaults.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
	DefaultK            = 20
	DefaultMaxK         = 50
	DefaultAlpha        = 0.9
	DefaultCollection   = "CV1_collection"
	DefaultDimensions   = 384
	DefaultWorkers      = 4
)

// DefaultExtensions are the file types ingested when none are configured.
var DefaultExtensions = []string{
	".pdf", ".docx", ".odt", ".rtf", ".txt", ".md", ".rst",
	".html", ".htm", ".xlsx", ".pptx", ".odp", ".ods",
}

// ApplyDefaults sets default values for any zero values in cfg.
// Fields where zero is meaningful (chunk overlap, alpha) are pointers and only defaulted when nil.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/cvsearch/data/db/catalog.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/cvsearch/data/indices/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/cvsearch/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = DefaultCollection
	}
	if cfg.Vector.Backend == "memory" && cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/cvsearch/data/indices/vectors.bin"
	}
	if cfg.Vector.Redis.Addr == "" {
		cfg.Vector.Redis.Addr = "localhost:6379"
	}
	if cfg.Vector.Qdrant.TimeoutSeconds == 0 {
		cfg.Vector.Qdrant.TimeoutSeconds = 10
	}
	if cfg.Segment.ChunkSize == 0 {
		cfg.Segment.ChunkSize = DefaultChunkSize
	}
	if cfg.Segment.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		cfg.Segment.ChunkOverlap = &o
	}
	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = DefaultWorkers
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = DefaultK
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = DefaultMaxK
	}
	if cfg.Search.Alpha == nil {
		a := DefaultAlpha
		cfg.Search.Alpha = &a
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.DefaultSource == "" {
		cfg.Search.DefaultSource = "semantic"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
