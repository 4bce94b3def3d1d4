// Package engine implements the reply decision core: the answering engine
// that decides whether and what to reply, and the learning recorder that
// captures question/answer pairs from reply relations.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/parley-bot/parley/internal/activity"
	"github.com/parley-bot/parley/internal/corpus"
	"github.com/parley-bot/parley/internal/logging"
	"github.com/parley-bot/parley/internal/policy"
	"github.com/parley-bot/parley/internal/runtime"
	"github.com/parley-bot/parley/internal/textnorm"
)

// FallbackReply is sent when a reply is owed but the corpus has no answer.
const FallbackReply = `¯\_(ツ)_/¯`

// Outcome describes what the answering engine did with a message.
type Outcome string

const (
	// OutcomeAnswered means a matched answer was sent.
	OutcomeAnswered Outcome = "answered"
	// OutcomeSuppressed means a match existed but neither ratio nor
	// necessity justified a reply.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeFallback means no match existed but a reply was owed, so the
	// fallback marker was sent.
	OutcomeFallback Outcome = "fallback"
	// OutcomeIgnored means no match existed and no reply was owed.
	OutcomeIgnored Outcome = "ignored"
)

// IdentitySource exposes the bot's own handle. An empty handle means the
// identity is not resolved yet; the necessity policy then fails closed.
type IdentitySource interface {
	Handle() string
}

// Answerer decides replies for inbound plain-text messages.
type Answerer struct {
	collection corpus.Collection
	clock      *activity.Clock
	identity   IdentitySource
	threshold  float64
}

// NewAnswerer creates an answering engine over a corpus collection.
func NewAnswerer(collection corpus.Collection, clock *activity.Clock, identity IdentitySource, threshold float64) *Answerer {
	return &Answerer{
		collection: collection,
		clock:      clock,
		identity:   identity,
		threshold:  threshold,
	}
}

// HandleIncomingText runs the reply decision for one message. The activity
// clock is touched only after a send succeeds; a send failure surfaces the
// error and leaves the clock alone.
func (a *Answerer) HandleIncomingText(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) (Outcome, error) {
	if msg == nil {
		return OutcomeIgnored, errors.New("message is required")
	}

	question := textnorm.Question(msg.Text)
	match, err := a.collection.BestMatch(ctx, question)
	if errors.Is(err, corpus.ErrNoAnswer) {
		if !a.necessary(msg) {
			return OutcomeIgnored, nil
		}
		logging.Logger().Debug("no answer", "question", question)
		if err := w.WriteReply(ctx, FallbackReply); err != nil {
			return OutcomeIgnored, fmt.Errorf("send fallback reply: %w", err)
		}
		a.clock.Touch()
		return OutcomeFallback, nil
	}
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("query corpus: %w", err)
	}

	if match.Ratio <= a.threshold && !a.necessary(msg) {
		return OutcomeSuppressed, nil
	}

	logging.Logger().Info("answering", "question", question, "answer", match.Answer, "ratio", match.Ratio)
	if err := w.WriteReply(ctx, match.Answer); err != nil {
		return OutcomeSuppressed, fmt.Errorf("send answer: %w", err)
	}
	a.clock.Touch()
	return OutcomeAnswered, nil
}

func (a *Answerer) necessary(msg *runtime.Message) bool {
	handle := ""
	if a.identity != nil {
		handle = a.identity.Handle()
	}
	return policy.NecessaryToReply(msg.ChatKind, msg.Text, handle)
}

// Recorder captures question/answer pairs from reply relations.
type Recorder struct {
	collection corpus.Collection
}

// NewRecorder creates a learning recorder over a corpus collection.
func NewRecorder(collection corpus.Collection) *Recorder {
	return &Recorder{collection: collection}
}

// HandleReplyPair persists the replied-to text as a question and the reply
// text as its answer. Learning is passive: no reply is sent and the activity
// clock is not touched.
func (r *Recorder) HandleReplyPair(ctx context.Context, original, reply *runtime.Message) error {
	if original == nil || reply == nil {
		return errors.New("original and reply messages are required")
	}

	question := textnorm.Question(original.Text)
	answer := textnorm.Answer(reply.Text)
	if question == "" || answer == "" {
		return nil
	}

	if err := r.collection.AddDocument(ctx, question, answer); err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	logging.Logger().Debug("learned", "question", question, "answer", answer)
	return nil
}
