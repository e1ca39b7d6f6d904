package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/pkg/utils"
)

const memoryMagic = "CVV1"

// MemoryStore is a brute-force in-memory store. Suitable for tests and corpora of a few
// thousand resumes. With a non-empty path it is loaded on open and saved on Close.
type MemoryStore struct {
	path        string
	collections map[string]*memCollection
	mu          sync.RWMutex
}

type memCollection struct {
	dim     int
	records []models.Record
	byID    map[string]int
}

// NewMemoryStore creates a store. If path names an existing snapshot it is loaded.
func NewMemoryStore(path string) (*MemoryStore, error) {
	m := &MemoryStore{path: path, collections: make(map[string]*memCollection)}
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureCollection creates the collection if missing. An existing collection must have the same dimension.
func (m *MemoryStore) EnsureCollection(_ context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", models.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.dim != dim {
			return fmt.Errorf("%w: collection %s has %d dimensions, requested %d", ErrDimensionMismatch, name, c.dim, dim)
		}
		return nil
	}
	m.collections[name] = &memCollection{dim: dim, byID: make(map[string]int)}
	return nil
}

// Insert upserts records.
func (m *MemoryStore) Insert(_ context.Context, name string, records []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	if err := checkDims(records, c.dim); err != nil {
		return err
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		if i, ok := c.byID[r.ID]; ok {
			c.records[i] = r
			continue
		}
		c.byID[r.ID] = len(c.records)
		c.records = append(c.records, r)
	}
	return nil
}

// Search scores every record by cosine similarity.
func (m *MemoryStore) Search(ctx context.Context, name string, query []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	if len(query) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, collection expects %d", ErrDimensionMismatch, len(query), c.dim)
	}
	if topK <= 0 || len(c.records) == 0 {
		return []Match{}, nil
	}
	matches := make([]Match, len(c.records))
	for i, r := range c.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		matches[i] = Match{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Text:       r.Text,
			SourcePath: r.SourcePath,
			Similarity: utils.CosineSimilarity(query, r.Vector),
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByDocument removes the document's records. A missing collection is not an error.
func (m *MemoryStore) DeleteByDocument(_ context.Context, name, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil
	}
	kept := c.records[:0]
	for _, r := range c.records {
		if r.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	c.records = kept
	c.byID = make(map[string]int, len(kept))
	for i, r := range kept {
		c.byID[r.ID] = i
	}
	return nil
}

// Count returns the number of records in the collection.
func (m *MemoryStore) Count(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	return int64(len(c.records)), nil
}

// Close saves the snapshot when the store has a path.
func (m *MemoryStore) Close() error {
	return m.Save(m.path)
}

// Save writes all collections to path. Format (little endian): magic "CVV1", collection
// count; per collection: name, dim, record count; per record: id, document id, source
// path, text (uint32 length-prefixed), then dim float32 values.
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create vector dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.encode(w); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flush vector file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close vector file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *MemoryStore) encode(w io.Writer) error {
	if _, err := io.WriteString(w, memoryMagic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := writeUint32(w, len(names)); err != nil {
		return err
	}
	for _, name := range names {
		c := m.collections[name]
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeUint32(w, c.dim); err != nil {
			return err
		}
		if err := writeUint32(w, len(c.records)); err != nil {
			return err
		}
		for _, r := range c.records {
			for _, s := range []string{r.ID, r.DocumentID, r.SourcePath, r.Text} {
				if err := writeString(w, s); err != nil {
					return err
				}
			}
			if _, err := w.Write(utils.Float32sToBytes(r.Vector)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	return nil
}

// Load replaces the in-memory contents with the snapshot at path.
// A missing file leaves the store unchanged.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	collections, err := decodeCollections(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	m.mu.Lock()
	m.collections = collections
	m.mu.Unlock()
	return nil
}

func decodeCollections(r io.Reader) (map[string]*memCollection, error) {
	magic := make([]byte, len(memoryMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(magic) != memoryMagic {
		return nil, fmt.Errorf("not a vector snapshot (header %q)", magic)
	}
	nColl, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*memCollection, nColl)
	for i := 0; i < nColl; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		dim, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		c := &memCollection{dim: dim, records: make([]models.Record, 0, n), byID: make(map[string]int, n)}
		buf := make([]byte, dim*4)
		for j := 0; j < n; j++ {
			var fields [4]string
			for k := range fields {
				if fields[k], err = readString(r); err != nil {
					return nil, err
				}
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read vector: %w", err)
			}
			c.byID[fields[0]] = len(c.records)
			c.records = append(c.records, models.Record{
				ID:         fields[0],
				DocumentID: fields[1],
				SourcePath: fields[2],
				Text:       fields[3],
				Vector:     utils.BytesToFloat32s(buf),
			})
		}
		out[name] = c
	}
	return out, nil
}

func writeUint32(w io.Writer, v int) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(v)); err != nil {
		return fmt.Errorf("write uint32: %w", err)
	}
	return nil
}

func readUint32(r io.Reader) (int, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return int(v), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, len(s)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}
