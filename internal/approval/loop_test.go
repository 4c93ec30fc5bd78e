package approval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
	"github.com/blockapps/kieren-clone/internal/guard"
)

var errScriptDone = errors.New("script exhausted")

// scriptedProvider replays a fixed sequence of decisions; running
// out of script acts like an interrupt.
type scriptedProvider struct {
	decisions []ports.Decision
	confirms  []bool
	composed  []string

	seen           []ports.Candidate
	composePrompts []string
}

func (s *scriptedProvider) Decide(ctx context.Context, c ports.Candidate) (ports.Decision, error) {
	s.seen = append(s.seen, c)
	if len(s.decisions) == 0 {
		return ports.Decision{}, errScriptDone
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func (s *scriptedProvider) Confirm(ctx context.Context, prompt string) (bool, error) {
	if len(s.confirms) == 0 {
		return false, errScriptDone
	}
	ok := s.confirms[0]
	s.confirms = s.confirms[1:]
	return ok, nil
}

func (s *scriptedProvider) Compose(ctx context.Context, prompt string) (string, error) {
	s.composePrompts = append(s.composePrompts, prompt)
	if len(s.composed) == 0 {
		return "", errScriptDone
	}
	text := s.composed[0]
	s.composed = s.composed[1:]
	return text, nil
}

type fakeBrain struct {
	results  []domain.GenerationResult
	requests []domain.GenerationRequest
}

func (b *fakeBrain) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	b.requests = append(b.requests, req)
	if len(b.results) == 0 {
		return domain.GenerationResult{}, nil
	}
	res := b.results[0]
	if len(b.results) > 1 {
		b.results = b.results[1:]
	}
	return res, nil
}

type fakePlatform struct {
	published  []string
	replyToIDs []string
	id         string
	err        error
}

func (p *fakePlatform) Publish(ctx context.Context, text, replyToID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, text)
	p.replyToIDs = append(p.replyToIDs, replyToID)
	return p.id, nil
}
func (p *fakePlatform) Me(ctx context.Context) (domain.Account, error) {
	return domain.Account{}, nil
}
func (p *fakePlatform) UserPosts(ctx context.Context, userID string, pageSize int, cursor string) (domain.Page, error) {
	return domain.Page{}, nil
}
func (p *fakePlatform) HomeTimeline(ctx context.Context, count int) (domain.TimelineBatch, error) {
	return domain.TimelineBatch{}, nil
}
func (p *fakePlatform) PostByID(ctx context.Context, id string) (domain.RawItem, error) {
	return domain.RawItem{}, nil
}

type memLog struct {
	records []domain.AttemptRecord
}

func (l *memLog) Append(rec domain.AttemptRecord) error {
	l.records = append(l.records, rec)
	return nil
}
func (l *memLog) AcceptedTexts(limit int) ([]string, error) { return nil, nil }

func candidateResult(text string) domain.GenerationResult {
	return domain.GenerationResult{ShouldRespond: true, Text: text, Raw: text}
}

func newLoop(b *fakeBrain, p *fakePlatform, l *memLog, s *scriptedProvider) *Loop {
	return &Loop{
		Brain:    b,
		Platform: p,
		Log:      l,
		Decider:  s,
		Username: "tester",
	}
}

func target() Target {
	return Target{ReplyToID: "42", SourceText: "the source tweet", Mode: domain.ModeReply}
}

func TestAcceptFirstCandidate(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("a fine reply")}}
	p := &fakePlatform{id: "9001"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
		confirms:  []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomePublished {
		t.Fatalf("expected published, got %s", outcome)
	}

	want := "a fine reply" + ReplyDisclaimer
	if len(p.published) != 1 || p.published[0] != want {
		t.Fatalf("published text mismatch: %q", p.published)
	}
	if p.replyToIDs[0] != "42" {
		t.Fatalf("reply target lost: %q", p.replyToIDs[0])
	}
	if len(l.records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(l.records))
	}
	rec := l.records[0]
	if rec.Status != domain.StatusAccepted {
		t.Fatalf("expected accepted, got %s", rec.Status)
	}
	if rec.FinalText != want {
		t.Fatalf("final text must include the disclaimer: %q", rec.FinalText)
	}
}

func TestConfirmNoRecordsRejection(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("nope")}}
	p := &fakePlatform{}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
		confirms:  []bool{false},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomeAborted {
		t.Fatalf("expected clean abort, got %s, %v", outcome, err)
	}
	if len(p.published) != 0 {
		t.Fatal("nothing may be published after a declined confirmation")
	}
	if len(l.records) != 1 || l.records[0].Status != domain.StatusRejected {
		t.Fatalf("expected one rejected record, got %+v", l.records)
	}
}

func TestFeedbackTwiceThenInterrupt(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("draft")}}
	p := &fakePlatform{}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{
			{Kind: ports.DecisionFeedback, Text: "too dry"},
			{Kind: ports.DecisionFeedback, Text: "more numbers"},
			// third Decide call runs off the script: interrupt
		},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomeAborted {
		t.Fatalf("expected clean abort, got %s, %v", outcome, err)
	}
	if len(l.records) != 2 {
		t.Fatalf("expected two rejected records, got %d", len(l.records))
	}
	for _, rec := range l.records {
		if rec.Status != domain.StatusRejected {
			t.Fatalf("expected rejected, got %s", rec.Status)
		}
	}
	// Feedback steers the next generation.
	if len(b.requests) != 3 {
		t.Fatalf("expected 3 generations, got %d", len(b.requests))
	}
	if b.requests[1].Feedback != "too dry" || b.requests[2].Feedback != "more numbers" {
		t.Fatalf("feedback not propagated: %+v", b.requests)
	}
}

func TestRegenerateClearsFeedback(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("draft")}}
	s := &scriptedProvider{
		decisions: []ports.Decision{
			{Kind: ports.DecisionFeedback, Text: "shorter"},
			{Kind: ports.DecisionRegenerate},
		},
	}

	newLoop(b, &fakePlatform{}, &memLog{}, s).Run(context.Background(), target())
	if b.requests[1].Feedback != "shorter" {
		t.Fatalf("feedback lost: %q", b.requests[1].Feedback)
	}
	if b.requests[2].Feedback != "" {
		t.Fatalf("regenerate must clear feedback, got %q", b.requests[2].Feedback)
	}
}

func TestRegenerateAntiThrash(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("draft")}}
	p := &fakePlatform{}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
		},
		composed: []string{"sharper please"},
	}

	newLoop(b, p, l, s).Run(context.Background(), target())

	// The first three regenerations pass silently; the fourth must
	// demand feedback or a manual entry.
	if len(s.composePrompts) != 1 {
		t.Fatalf("expected exactly one forced prompt, got %d", len(s.composePrompts))
	}
	if !strings.Contains(s.composePrompts[0], "Feedback") {
		t.Fatalf("unexpected prompt: %q", s.composePrompts[0])
	}
	last := b.requests[len(b.requests)-1]
	if last.Feedback != "sharper please" {
		t.Fatalf("forced feedback not used: %q", last.Feedback)
	}
	if len(l.records) != 1 || l.records[0].Status != domain.StatusRejected {
		t.Fatalf("forced feedback counts as a rejection: %+v", l.records)
	}
}

func TestRegenerateAntiThrashEmptyInputAccepts(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("good enough")}}
	p := &fakePlatform{id: "12"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
		},
		composed: []string{""},
		confirms: []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomePublished {
		t.Fatalf("empty forced-prompt input must accept, got %s, %v", outcome, err)
	}
	if len(p.published) != 1 || p.published[0] != "good enough"+ReplyDisclaimer {
		t.Fatalf("published text mismatch: %q", p.published)
	}
	if len(l.records) != 1 || l.records[0].Status != domain.StatusAccepted {
		t.Fatalf("expected one accepted record, got %+v", l.records)
	}
}

func TestRegenerateAntiThrashManualEntry(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("machine draft")}}
	p := &fakePlatform{id: "13"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
			{Kind: ports.DecisionRegenerate},
		},
		// Mixed case must still route to manual entry.
		composed: []string{"Manual", "typed by hand"},
		confirms: []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomePublished {
		t.Fatalf("expected publish, got %s, %v", outcome, err)
	}
	if len(p.published) != 1 || p.published[0] != "typed by hand" {
		t.Fatalf("manual text must go out verbatim: %q", p.published)
	}
	if len(l.records) != 1 || l.records[0].FinalText != "typed by hand" {
		t.Fatalf("unexpected record: %+v", l.records)
	}
}

func TestManualPublishesVerbatim(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("machine words")}}
	p := &fakePlatform{id: "77"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionManual}},
		composed:  []string{"my own words"},
		confirms:  []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomePublished {
		t.Fatalf("expected publish, got %s, %v", outcome, err)
	}
	if p.published[0] != "my own words" {
		t.Fatalf("manual text must go out without disclaimer: %q", p.published[0])
	}
	rec := l.records[0]
	if rec.Status != domain.StatusAccepted || rec.FinalText != "my own words" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.GeneratedText != "machine words" {
		t.Fatalf("generated text must be retained for the audit trail: %q", rec.GeneratedText)
	}
}

func TestManualDeclineKeepsCandidateLive(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("still here")}}
	p := &fakePlatform{id: "1"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{
			{Kind: ports.DecisionManual},
			{Kind: ports.DecisionAccept},
		},
		composed: []string{""},
		confirms: []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomePublished {
		t.Fatalf("expected publish, got %s, %v", outcome, err)
	}
	// No regeneration happened: one generation, same candidate shown
	// twice.
	if len(b.requests) != 1 {
		t.Fatalf("manual decline must not regenerate, got %d generations", len(b.requests))
	}
	if len(s.seen) != 2 || s.seen[1].Text != "still here" {
		t.Fatalf("candidate not kept live: %+v", s.seen)
	}
}

func TestNoModelReplyRecordedAndManualStillPossible(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{{}}} // declined
	p := &fakePlatform{}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomeAborted {
		t.Fatalf("expected clean abort, got %s, %v", outcome, err)
	}
	if len(l.records) != 2 {
		t.Fatalf("expected no_model_reply then rejected, got %+v", l.records)
	}
	if l.records[0].Status != domain.StatusNoModelReply {
		t.Fatalf("expected no_model_reply first, got %s", l.records[0].Status)
	}
	if l.records[1].Status != domain.StatusRejected {
		t.Fatalf("accepting an empty candidate aborts as rejected, got %s", l.records[1].Status)
	}
	if len(p.published) != 0 {
		t.Fatal("a declined generation must never publish without override")
	}
}

func TestPublishFailureSkipsAcceptedRecord(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("doomed")}}
	p := &fakePlatform{err: errors.New("api down")}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
		confirms:  []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err == nil {
		t.Fatal("publish failure must propagate")
	}
	if outcome != OutcomeAborted {
		t.Fatalf("expected abort, got %s", outcome)
	}
	for _, rec := range l.records {
		if rec.Status == domain.StatusAccepted {
			t.Fatal("a failed publish call must not record acceptance")
		}
	}
}

func TestPostedWithUnknownIDStillAccepted(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("fine")}}
	p := &fakePlatform{id: ""} // platform took the post, no id returned
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
		confirms:  []bool{true},
	}

	outcome, err := newLoop(b, p, l, s).Run(context.Background(), target())
	if err != nil || outcome != OutcomePublished {
		t.Fatalf("expected publish, got %s, %v", outcome, err)
	}
	if len(l.records) != 1 || l.records[0].Status != domain.StatusAccepted {
		t.Fatalf("posted-with-unknown-id must still be accepted: %+v", l.records)
	}
}

func TestDuplicateWarningIsAdvisory(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("hello world")}}
	p := &fakePlatform{id: "5"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
		confirms:  []bool{true},
	}

	loop := newLoop(b, p, l, s)
	loop.Guard = guard.NewDetector()
	loop.Corpus = []string{"hello world!"}

	outcome, err := loop.Run(context.Background(), target())
	if err != nil || outcome != OutcomePublished {
		t.Fatalf("a duplicate warning must not block publication: %s, %v", outcome, err)
	}
	if s.seen[0].DuplicateOf != "hello world!" {
		t.Fatalf("duplicate warning not surfaced: %+v", s.seen[0])
	}
}

func TestInterruptBeforeDecisionLogsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("x")}}
	l := &memLog{}
	s := &scriptedProvider{}

	outcome, err := newLoop(b, &fakePlatform{}, l, s).Run(ctx, target())
	if err != nil || outcome != OutcomeAborted {
		t.Fatalf("expected clean abort, got %s, %v", outcome, err)
	}
	if len(l.records) != 0 {
		t.Fatalf("interrupt must not log: %+v", l.records)
	}
}

func TestTopicModeUsesTweetDisclaimer(t *testing.T) {
	b := &fakeBrain{results: []domain.GenerationResult{candidateResult("a topic tweet")}}
	p := &fakePlatform{id: "8"}
	l := &memLog{}
	s := &scriptedProvider{
		decisions: []ports.Decision{{Kind: ports.DecisionAccept}},
		confirms:  []bool{true},
	}

	_, err := newLoop(b, p, l, s).Run(context.Background(), Target{
		SourceText: "bond yields",
		Mode:       domain.ModeOriginalShort,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.published[0] != "a topic tweet"+TweetDisclaimer {
		t.Fatalf("wrong disclaimer: %q", p.published[0])
	}
	if p.replyToIDs[0] != "" {
		t.Fatalf("topic mode must not set a reply target: %q", p.replyToIDs[0])
	}
}
