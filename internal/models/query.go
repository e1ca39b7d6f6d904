package models

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Hit sources for a search.
const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
)

var validate = validator.New()

// SearchQuery represents a ranking request.
// K is the number of nearest chunks retrieved; Alpha weighs mean similarity against coverage.
type SearchQuery struct {
	Query    string   `json:"query" validate:"required"`
	K        *int     `json:"k,omitempty"`
	Alpha    *float64 `json:"alpha,omitempty"`
	Limit    int      `json:"limit,omitempty" validate:"gte=0"`
	Offset   int      `json:"offset,omitempty" validate:"gte=0"`
	MinScore float64  `json:"min_score,omitempty"`
	Source   string   `json:"source,omitempty" validate:"omitempty,oneof=semantic keyword"`
}

// QueryDefaults are the configured fallbacks for unset query fields.
type QueryDefaults struct {
	K     int
	MaxK  int
	Alpha float64
	Limit int
}

// Validate checks the query and fills unset fields from defaults.
// Errors wrap ErrInvalidArgument.
func (q *SearchQuery) Validate(d QueryDefaults) error {
	q.Query = strings.TrimSpace(q.Query)
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, describeValidation(err))
	}
	if q.K == nil {
		k := d.K
		q.K = &k
	}
	if k := *q.K; k < 1 || (d.MaxK > 0 && k > d.MaxK) {
		return fmt.Errorf("%w: k must be between 1 and %d, got %d", ErrInvalidArgument, d.MaxK, k)
	}
	if q.Alpha == nil {
		a := d.Alpha
		q.Alpha = &a
	}
	if a := *q.Alpha; math.IsNaN(a) || a < 0 || a > 1 {
		return fmt.Errorf("%w: alpha must be within [0,1], got %v", ErrInvalidArgument, a)
	}
	if q.Limit == 0 {
		q.Limit = d.Limit
	}
	if q.Source == "" {
		q.Source = SourceSemantic
	}
	return nil
}

// KValue returns the chunk count, or 0 when unset.
func (q *SearchQuery) KValue() int {
	if q.K == nil {
		return 0
	}
	return *q.K
}

// AlphaValue returns the alpha weight, or 0 when unset.
func (q *SearchQuery) AlphaValue() float64 {
	if q.Alpha == nil {
		return 0
	}
	return *q.Alpha
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" cannot be empty")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}
