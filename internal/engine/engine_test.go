package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/parley-bot/parley/internal/activity"
	"github.com/parley-bot/parley/internal/corpus"
	"github.com/parley-bot/parley/internal/policy"
	"github.com/parley-bot/parley/internal/runtime"
)

type fakeCollection struct {
	mu    sync.Mutex
	match corpus.Match
	err   error
	added [][2]string

	lastQuestion string
}

func (f *fakeCollection) AddDocument(_ context.Context, question, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, [2]string{question, answer})
	return f.err
}

func (f *fakeCollection) BestMatch(_ context.Context, question string) (corpus.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuestion = question
	if f.err != nil {
		return corpus.Match{}, f.err
	}
	return f.match, nil
}

func (f *fakeCollection) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added), nil
}

type fakeWriter struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (w *fakeWriter) WriteReply(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.replies = append(w.replies, text)
	return nil
}

type fixedIdentity string

func (i fixedIdentity) Handle() string { return string(i) }

func privateMessage(text string) *runtime.Message {
	return &runtime.Message{Text: text, ChatID: 1, ChatKind: policy.ChatPrivate}
}

func groupMessage(text string) *runtime.Message {
	return &runtime.Message{Text: text, ChatID: 2, ChatKind: policy.ChatGroup}
}

func clockSet(c *activity.Clock) bool {
	_, ok := c.Last()
	return ok
}

func TestEmptyCorpusPrivateChatFallsBack(t *testing.T) {
	collection := &fakeCollection{err: corpus.ErrNoAnswer}
	writer := &fakeWriter{}
	clock := activity.NewClock()
	a := NewAnswerer(collection, clock, fixedIdentity("bot"), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, privateMessage("What time is it?"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeFallback {
		t.Fatalf("expected fallback, got %q", outcome)
	}
	if len(writer.replies) != 1 || writer.replies[0] != FallbackReply {
		t.Fatalf("expected fallback reply, got %#v", writer.replies)
	}
	if !clockSet(clock) {
		t.Fatalf("expected activity clock update after fallback send")
	}
}

func TestEmptyCorpusGroupWithoutMentionIsIgnored(t *testing.T) {
	collection := &fakeCollection{err: corpus.ErrNoAnswer}
	writer := &fakeWriter{}
	clock := activity.NewClock()
	a := NewAnswerer(collection, clock, fixedIdentity("bot"), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, groupMessage("random text"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %q", outcome)
	}
	if len(writer.replies) != 0 {
		t.Fatalf("expected no reply, got %#v", writer.replies)
	}
	if clockSet(clock) {
		t.Fatalf("expected no clock update when nothing was sent")
	}
}

func TestNecessityOverridesLowRatio(t *testing.T) {
	collection := &fakeCollection{match: corpus.Match{Answer: "hello", Ratio: 0.3}}
	writer := &fakeWriter{}
	clock := activity.NewClock()
	a := NewAnswerer(collection, clock, fixedIdentity("bot"), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, groupMessage("@bot hi"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeAnswered {
		t.Fatalf("expected answered, got %q", outcome)
	}
	if len(writer.replies) != 1 || writer.replies[0] != "hello" {
		t.Fatalf("expected matched answer, got %#v", writer.replies)
	}
	if !clockSet(clock) {
		t.Fatalf("expected clock update after answer")
	}
}

func TestHighRatioAloneSuffices(t *testing.T) {
	collection := &fakeCollection{match: corpus.Match{Answer: "the answer", Ratio: 0.9}}
	writer := &fakeWriter{}
	clock := activity.NewClock()
	a := NewAnswerer(collection, clock, fixedIdentity("bot"), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, groupMessage("random text"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeAnswered {
		t.Fatalf("expected answered, got %q", outcome)
	}
}

func TestLowRatioWithoutNecessityIsSuppressed(t *testing.T) {
	collection := &fakeCollection{match: corpus.Match{Answer: "meh", Ratio: 0.2}}
	writer := &fakeWriter{}
	clock := activity.NewClock()
	a := NewAnswerer(collection, clock, fixedIdentity("bot"), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, groupMessage("random text"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeSuppressed {
		t.Fatalf("expected suppressed, got %q", outcome)
	}
	if len(writer.replies) != 0 {
		t.Fatalf("expected no reply, got %#v", writer.replies)
	}
	if clockSet(clock) {
		t.Fatalf("expected no clock update for suppressed message")
	}
}

func TestRatioEqualToThresholdDoesNotAnswer(t *testing.T) {
	collection := &fakeCollection{match: corpus.Match{Answer: "meh", Ratio: 0.5}}
	writer := &fakeWriter{}
	a := NewAnswerer(collection, activity.NewClock(), fixedIdentity("bot"), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, groupMessage("random text"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeSuppressed {
		t.Fatalf("ratio must exceed threshold strictly, got %q", outcome)
	}
}

func TestSendFailureSurfacesAndSkipsClock(t *testing.T) {
	collection := &fakeCollection{match: corpus.Match{Answer: "hello", Ratio: 0.9}}
	writer := &fakeWriter{err: errors.New("network down")}
	clock := activity.NewClock()
	a := NewAnswerer(collection, clock, fixedIdentity("bot"), 0.5)

	if _, err := a.HandleIncomingText(context.Background(), writer, privateMessage("hi")); err == nil {
		t.Fatalf("expected send failure to surface")
	}
	if clockSet(clock) {
		t.Fatalf("expected no clock update after failed send")
	}
}

func TestUnresolvedIdentityFailsClosedInGroups(t *testing.T) {
	collection := &fakeCollection{err: corpus.ErrNoAnswer}
	writer := &fakeWriter{}
	a := NewAnswerer(collection, activity.NewClock(), fixedIdentity(""), 0.5)

	outcome, err := a.HandleIncomingText(context.Background(), writer, groupMessage("@bot hi"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored with unresolved identity, got %q", outcome)
	}
}

func TestAnswererStripsURLsFromQuestion(t *testing.T) {
	collection := &fakeCollection{match: corpus.Match{Answer: "ok", Ratio: 0.9}}
	writer := &fakeWriter{}
	a := NewAnswerer(collection, activity.NewClock(), fixedIdentity("bot"), 0.5)

	if _, err := a.HandleIncomingText(context.Background(), writer, privateMessage("see https://example.com please")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if collection.lastQuestion != "see please" {
		t.Fatalf("expected URL-stripped question, got %q", collection.lastQuestion)
	}
}

func TestCorpusInfrastructureErrorSurfaces(t *testing.T) {
	collection := &fakeCollection{err: errors.New("disk on fire")}
	writer := &fakeWriter{}
	a := NewAnswerer(collection, activity.NewClock(), fixedIdentity("bot"), 0.5)

	if _, err := a.HandleIncomingText(context.Background(), writer, privateMessage("hi")); err == nil {
		t.Fatalf("expected corpus error to surface")
	}
	if len(writer.replies) != 0 {
		t.Fatalf("expected no reply on corpus error, got %#v", writer.replies)
	}
}

func TestRecorderPersistsNormalizedPair(t *testing.T) {
	collection := &fakeCollection{}
	r := NewRecorder(collection)

	original := groupMessage("what is this https://example.com thing?")
	reply := groupMessage("a link to https://example.com of course")
	if err := r.HandleReplyPair(context.Background(), original, reply); err != nil {
		t.Fatalf("handle pair: %v", err)
	}

	if len(collection.added) != 1 {
		t.Fatalf("expected one document, got %d", len(collection.added))
	}
	if got := collection.added[0][0]; got != "what is this thing?" {
		t.Fatalf("expected URL-stripped question, got %q", got)
	}
	if got := collection.added[0][1]; got != "a link to https://example.com of course" {
		t.Fatalf("expected answer with URL preserved, got %q", got)
	}
}

func TestRecorderSkipsEmptyPairs(t *testing.T) {
	collection := &fakeCollection{}
	r := NewRecorder(collection)

	if err := r.HandleReplyPair(context.Background(), groupMessage("https://example.com"), groupMessage("answer")); err != nil {
		t.Fatalf("handle pair: %v", err)
	}
	if len(collection.added) != 0 {
		t.Fatalf("expected no documents for empty question, got %d", len(collection.added))
	}
}

func TestRecorderDoesNotTouchClock(t *testing.T) {
	collection := &fakeCollection{}
	r := NewRecorder(collection)

	if err := r.HandleReplyPair(context.Background(), groupMessage("q"), groupMessage("a")); err != nil {
		t.Fatalf("handle pair: %v", err)
	}
	// The recorder has no clock dependency at all; this documents the
	// deliberate asymmetry with the answering path.
	if len(collection.added) != 1 {
		t.Fatalf("expected one document, got %d", len(collection.added))
	}
}
