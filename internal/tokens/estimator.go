// Package tokens estimates prompt sizes for context-budget decisions.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens with a tiktoken encoding. When the encoding
// cannot be loaded (offline), it falls back to a bytes/4 heuristic.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) encoding() *tiktoken.Tiktoken {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.enc = enc
		}
	})
	return e.enc
}

// Count returns the token count of a single string.
func (e *Estimator) Count(text string) int {
	if enc := e.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// CountAll sums token counts across message texts, adding a small
// per-message overhead for role framing.
func (e *Estimator) CountAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += e.Count(t) + 4
	}
	return total
}
