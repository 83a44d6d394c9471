// Package assessment drives one run of an instrument from the first question
// to a finalized Result.
//
// A Session is owned by a single actor and is not safe for concurrent use.
// None of its methods block or perform I/O.
package assessment

import (
	"fmt"
	"strings"
	"time"

	"therapy-intake/internal/instrument"
	"therapy-intake/internal/recommend"
	"therapy-intake/internal/scoring"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session is an in-progress run of an instrument.
type Session struct {
	instrument *instrument.Instrument
	current    int
	answers    map[int]int
	ancillary  map[string]instrument.AncillaryValue
	status     Status
	result     *Result
	now        func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used to stamp the Result.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession starts a session on a validated instrument.
func NewSession(in *instrument.Instrument, opts ...Option) (*Session, error) {
	if !in.Validated() {
		return nil, fmt.Errorf("%w: session needs a validated instrument", instrument.ErrConfiguration)
	}
	s := &Session{
		instrument: in,
		answers:    make(map[int]int, in.QuestionCount()),
		ancillary:  make(map[string]instrument.AncillaryValue),
		status:     StatusInProgress,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) Instrument() *instrument.Instrument { return s.instrument }
func (s *Session) CurrentIndex() int { return s.current }
func (s *Session) Status() Status { return s.status }

// Answers returns a copy of the primary answers given so far.
func (s *Session) Answers() map[int]int {
	out := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Ancillary returns a copy of the ancillary answers given so far.
func (s *Session) Ancillary() map[string]instrument.AncillaryValue {
	out := make(map[string]instrument.AncillaryValue, len(s.ancillary))
	for k, v := range s.ancillary {
		out[k] = v.Clone()
	}
	return out
}

// Answer records value for the question at index, replacing any earlier
// answer. It does not move the cursor.
func (s *Session) Answer(index, value int) error {
	if s.status == StatusCompleted {
		return ErrSessionCompleted
	}
	q, err := s.instrument.QuestionAt(index)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !s.instrument.ScaleFor(q).Contains(value) {
		return fmt.Errorf("%w: %d is not a value on the scale of question %d", ErrInvalidResponse, value, index)
	}
	s.answers[index] = value
	return nil
}

// Advance moves to the next question. On the last question it completes the
// session instead, provided every question and every required ancillary
// field has been answered.
func (s *Session) Advance() error {
	if s.status == StatusCompleted {
		return ErrSessionCompleted
	}
	if _, ok := s.answers[s.current]; !ok {
		return fmt.Errorf("%w: question %d has no answer", ErrIncompleteAnswer, s.current)
	}
	if s.current < s.instrument.QuestionCount()-1 {
		s.current++
		return nil
	}
	if missing := s.unansweredQuestions(); len(missing) > 0 {
		return fmt.Errorf("%w: questions %v have no answer", ErrIncompleteAnswer, missing)
	}
	if missing := s.MissingAncillary(); len(missing) > 0 {
		return fmt.Errorf("%w: required fields %s have no answer", ErrIncompleteAnswer, strings.Join(missing, ", "))
	}
	s.status = StatusCompleted
	return nil
}

// Retreat moves back one question.
func (s *Session) Retreat() error {
	if s.status == StatusCompleted {
		return ErrSessionCompleted
	}
	if s.current == 0 {
		return fmt.Errorf("%w: already at the first question", ErrBoundary)
	}
	s.current--
	return nil
}

// SetAncillary records a follow-up answer.
func (s *Session) SetAncillary(fieldID string, value instrument.AncillaryValue) error {
	if s.status == StatusCompleted {
		return ErrSessionCompleted
	}
	field, err := s.instrument.Field(fieldID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := field.Check(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	s.ancillary[fieldID] = value.Clone()
	return nil
}

// MissingAncillary lists required ancillary fields without an answer, in
// declared order.
func (s *Session) MissingAncillary() []string {
	var missing []string
	for _, f := range s.instrument.Ancillary {
		if _, ok := s.ancillary[f.ID]; f.Required && !ok {
			missing = append(missing, f.ID)
		}
	}
	return missing
}

// SnapshotScore scores the answers given so far. Unanswered questions count
// as zero; the crisis flag only reflects answers already given.
func (s *Session) SnapshotScore() (scoring.Result, error) {
	return scoring.Evaluate(s.instrument, s.responses())
}

// Finalize scores a completed session, generates its recommendations and
// freezes the outcome. Repeated calls return the same Result.
func (s *Session) Finalize() (Result, error) {
	if s.result != nil {
		return s.result.Clone(), nil
	}
	if s.status != StatusCompleted {
		return Result{}, fmt.Errorf("%w: session is %s", ErrIncompleteSession, s.status)
	}
	if missing := s.unansweredQuestions(); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: questions %v have no answer", ErrIncompleteSession, missing)
	}

	resp := s.responses()
	score, err := scoring.Evaluate(s.instrument, resp)
	if err != nil {
		return Result{}, err
	}
	recs, err := recommend.Generate(s.instrument, score, resp)
	if err != nil {
		return Result{}, err
	}

	s.result = &Result{
		InstrumentID:     s.instrument.ID,
		TotalScore:       score.TotalScore,
		MaxScore:         score.MaxScore,
		SeverityKey:      score.Severity.Key,
		SeverityLabel:    score.Severity.Label,
		CrisisFlag:       score.CrisisFlag,
		Recommendations:  recs,
		AncillaryAnswers: s.Ancillary(),
		CompletedAt:      s.now().UTC(),
	}
	return s.result.Clone(), nil
}

func (s *Session) responses() instrument.Responses {
	return instrument.Responses{Answers: s.answers, Ancillary: s.ancillary}
}

func (s *Session) unansweredQuestions() []int {
	var missing []int
	for i := 0; i < s.instrument.QuestionCount(); i++ {
		if _, ok := s.answers[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
