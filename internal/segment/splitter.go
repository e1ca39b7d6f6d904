// Package segment splits extracted document text into cleaned, bounded, overlapping chunks.
//
// Lengths are counted in runes. Splitting prefers the strongest structural boundary present
// in the text (section heading, heading, line) and falls back to a raw rune cut.
package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/cvsearch/internal/models"
)

// DefaultSeparators are tried in order; the empty string means "cut anywhere".
var DefaultSeparators = []string{"##", "#", "\n"}

// Default window parameters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// Segmenter splits text into windows of at most size runes with up to overlap runes shared
// between neighbours.
type Segmenter struct {
	size          int
	overlap       int
	separators    []string
	keepOversized bool
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithKeepOversized emits a piece that has no remaining separator whole, even when it is
// longer than the chunk size, instead of cutting it.
func WithKeepOversized() Option {
	return func(s *Segmenter) { s.keepOversized = true }
}

// WithSeparators replaces the separator list. Order is strongest first.
func WithSeparators(seps ...string) Option {
	return func(s *Segmenter) {
		s.separators = append([]string(nil), seps...)
	}
}

// New returns a Segmenter. size must be positive and 0 <= overlap < size.
func New(size, overlap int, opts ...Option) (*Segmenter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidArgument, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0,%d), got %d", models.ErrInvalidArgument, size, overlap)
	}
	s := &Segmenter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Size returns the maximum chunk length in runes.
func (s *Segmenter) Size() int { return s.size }

// Overlap returns the maximum number of runes shared by consecutive chunks.
func (s *Segmenter) Overlap() int { return s.overlap }

// Preprocess normalizes line endings and replaces each "\n\n" pair with a single newline,
// left to right, so a run of three newlines becomes two.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n\n", "\n")
}

// Segment preprocesses, splits and cleans text. Pieces discarded by Clean are dropped, so
// the result may be empty.
func (s *Segmenter) Segment(text string) []string {
	pieces := s.Split(Preprocess(text))
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if cleaned, ok := Clean(p); ok {
			out = append(out, cleaned)
		}
	}
	return out
}

// Split returns raw, uncleaned pieces of text in source order.
func (s *Segmenter) Split(text string) []string {
	seps := s.separators
	if !s.keepOversized {
		seps = append(append([]string(nil), seps...), "")
	}
	return s.split(text, seps)
}

func (s *Segmenter) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	if len(seps) > 0 {
		sep = seps[len(seps)-1]
	}
	for i, cand := range seps {
		if cand == "" {
			sep = ""
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	var final, pending []string
	flush := func() {
		if len(pending) > 0 {
			final = append(final, s.merge(pending)...)
			pending = nil
		}
	}
	for _, piece := range splitKeepStart(text, sep) {
		if utf8.RuneCountInString(piece) < s.size {
			pending = append(pending, piece)
			continue
		}
		flush()
		if len(rest) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				final = append(final, t)
			}
			continue
		}
		final = append(final, s.split(piece, rest)...)
	}
	flush()
	return final
}

// merge joins consecutive small pieces into windows of at most s.size runes. When a window
// is emitted, trailing pieces totalling at most s.overlap runes carry into the next one.
func (s *Segmenter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		lengths []int
		total   int
	)
	emit := func() {
		if t := strings.TrimSpace(strings.Join(current, "")); t != "" {
			out = append(out, t)
		}
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.size && len(current) > 0 {
			emit()
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= lengths[0]
				current, lengths = current[1:], lengths[1:]
			}
		}
		current = append(current, p)
		lengths = append(lengths, n)
		total += n
	}
	if len(current) > 0 {
		emit()
	}
	return out
}

// splitKeepStart splits text on sep, attaching each separator to the start of the piece
// that follows it. An empty sep splits into single runes.
func splitKeepStart(text, sep string) []string {
	if text == "" {
		return nil
	}
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}
