// Package corpus stores learned question/answer pairs and retrieves the best
// answer for a new question.
package corpus

import (
	"context"
	"errors"
)

// ErrNoAnswer indicates the corpus holds no sufficiently relevant answer.
var ErrNoAnswer = errors.New("no answer for question")

// Match is one best-answer result.
type Match struct {
	Answer string
	// Ratio is the similarity between the query and the matched question,
	// in [0, 1].
	Ratio float64
}

// Collection is the capability contract for a corpus backend. Implementations
// must be safe for concurrent calls.
type Collection interface {
	// AddDocument persists one question/answer pair.
	AddDocument(ctx context.Context, question, answer string) error
	// BestMatch returns the stored answer whose question is most similar to
	// the query, or ErrNoAnswer when nothing relevant exists.
	BestMatch(ctx context.Context, question string) (Match, error)
	// Count reports how many documents are stored.
	Count(ctx context.Context) (int, error)
}
