package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"therapy-intake/internal/assessment"
	"therapy-intake/internal/instrument"
	"therapy-intake/internal/scoring"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidContact  = errors.New("invalid contact request")
)

// Reporter notifies the practice about a stored submission.
type Reporter interface {
	NotifySubmission(ctx context.Context, s Submission) error
}

type Service interface {
	Instruments() []InstrumentSummary
	Instrument(id string) (*instrument.Instrument, error)
	StartSession(ctx context.Context, instrumentID string) (SessionView, error)
	Session(ctx context.Context, id uuid.UUID) (SessionView, error)
	Answer(ctx context.Context, id uuid.UUID, index, value int) (SessionView, error)
	Advance(ctx context.Context, id uuid.UUID) (SessionView, error)
	Retreat(ctx context.Context, id uuid.UUID) (SessionView, error)
	SetAncillary(ctx context.Context, id uuid.UUID, fieldID string, raw json.RawMessage) (SessionView, error)
	Score(ctx context.Context, id uuid.UUID) (scoring.Result, error)
	Finalize(ctx context.Context, id uuid.UUID) (*Submission, error)
	RequestContact(ctx context.Context, submissionID uuid.UUID, req ContactRequest) (*ContactRequest, error)
}

type entry struct {
	session      *assessment.Session
	touched      time.Time
	submissionID uuid.UUID
}

// service keeps in-progress sessions in memory only; they are lost on restart
// and dropped once finalized or idle for longer than idleTTL.
type service struct {
	catalog  *instrument.Catalog
	repo     Repository
	reporter Reporter
	logger   *zap.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

func NewService(catalog *instrument.Catalog, repo Repository, reporter Reporter, logger *zap.Logger, idleTTL time.Duration) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		catalog:  catalog,
		repo:     repo,
		reporter: reporter,
		logger:   logger,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*entry),
	}
}

func (s *service) Instruments() []InstrumentSummary {
	var out []InstrumentSummary
	for _, in := range s.catalog.List() {
		out = append(out, InstrumentSummary{
			ID:            in.ID,
			Title:         in.Title,
			Description:   strings.TrimSpace(in.Description),
			QuestionCount: in.QuestionCount(),
			MaxScore:      in.MaxScore(),
		})
	}
	return out
}

func (s *service) Instrument(id string) (*instrument.Instrument, error) {
	return s.catalog.Get(id)
}

func (s *service) StartSession(ctx context.Context, instrumentID string) (SessionView, error) {
	in, err := s.catalog.Get(instrumentID)
	if err != nil {
		return SessionView{}, err
	}
	sess, err := assessment.NewSession(in)
	if err != nil {
		return SessionView{}, err
	}

	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.sessions[id] = &entry{session: sess, touched: s.now()}

	s.logger.Info("assessment started", zap.String("session_id", id.String()), zap.String("instrument", in.ID))
	return buildView(id, sess)
}

func (s *service) Session(ctx context.Context, id uuid.UUID) (SessionView, error) {
	return s.mutate(id, func(*assessment.Session) error { return nil })
}

func (s *service) Answer(ctx context.Context, id uuid.UUID, index, value int) (SessionView, error) {
	return s.mutate(id, func(sess *assessment.Session) error {
		return sess.Answer(index, value)
	})
}

func (s *service) Advance(ctx context.Context, id uuid.UUID) (SessionView, error) {
	return s.mutate(id, func(sess *assessment.Session) error {
		return sess.Advance()
	})
}

func (s *service) Retreat(ctx context.Context, id uuid.UUID) (SessionView, error) {
	return s.mutate(id, func(sess *assessment.Session) error {
		return sess.Retreat()
	})
}

func (s *service) SetAncillary(ctx context.Context, id uuid.UUID, fieldID string, raw json.RawMessage) (SessionView, error) {
	return s.mutate(id, func(sess *assessment.Session) error {
		field, err := sess.Instrument().Field(fieldID)
		if err != nil {
			return fmt.Errorf("%w: %v", assessment.ErrInvalidResponse, err)
		}
		value, err := field.Decode(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", assessment.ErrInvalidResponse, err)
		}
		return sess.SetAncillary(fieldID, value)
	})
}

func (s *service) Score(ctx context.Context, id uuid.UUID) (scoring.Result, error) {
	var res scoring.Result
	err := s.withSession(id, func(e *entry) error {
		var err error
		res, err = e.session.SnapshotScore()
		return err
	})
	return res, err
}

// Finalize freezes the session, stores the result and hands it to the
// reporter. The session leaves the registry while its result is being
// stored, so a concurrent finalize gets ErrSessionNotFound instead of a
// second notification. A failed save puts the session back for a retry;
// retries reuse the submission id, which keeps the insert idempotent.
func (s *service) Finalize(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var (
		claimed *entry
		result  assessment.Result
	)
	err := s.withSession(id, func(e *entry) error {
		var err error
		if result, err = e.session.Finalize(); err != nil {
			return err
		}
		if e.submissionID == uuid.Nil {
			e.submissionID = uuid.New()
		}
		delete(s.sessions, id)
		claimed = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub := &Submission{ID: claimed.submissionID, Result: result, CreatedAt: s.now().UTC()}
	if err := s.repo.SaveSubmission(ctx, sub); err != nil {
		s.mu.Lock()
		claimed.touched = s.now()
		s.sessions[id] = claimed
		s.mu.Unlock()
		s.logger.Error("failed to store submission", zap.String("session_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	fields := []zap.Field{
		zap.String("session_id", id.String()),
		zap.String("submission_id", sub.ID.String()),
		zap.String("instrument", result.InstrumentID),
		zap.String("severity", result.SeverityKey),
		zap.Bool("crisis", result.CrisisFlag),
	}
	if result.CrisisFlag {
		s.logger.Warn("assessment completed with crisis indicators", fields...)
	} else {
		s.logger.Info("assessment completed", fields...)
	}

	if s.reporter != nil {
		if err := s.reporter.NotifySubmission(ctx, *sub); err != nil {
			s.logger.Error("failed to notify practice", zap.String("submission_id", sub.ID.String()), zap.Error(err))
		}
	}
	return sub, nil
}

func (s *service) RequestContact(ctx context.Context, submissionID uuid.UUID, req ContactRequest) (*ContactRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validateContact(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}

	req.ID = uuid.New()
	req.SubmissionID = submissionID
	req.CreatedAt = s.now().UTC()
	if err := s.repo.SaveContactRequest(ctx, &req); err != nil {
		return nil, fmt.Errorf("failed to store contact request: %w", err)
	}
	s.logger.Info("contact requested", zap.String("submission_id", submissionID.String()), zap.String("preferred_contact", req.PreferredContact))
	return &req, nil
}

func validateContact(req ContactRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidContact)
	}
	if req.Email == "" && req.Phone == "" {
		return fmt.Errorf("%w: email or phone is required", ErrInvalidContact)
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return fmt.Errorf("%w: email address is not valid", ErrInvalidContact)
		}
	}
	switch req.PreferredContact {
	case "", "email", "phone", "text":
	default:
		return fmt.Errorf("%w: preferred contact must be email, phone or text", ErrInvalidContact)
	}
	return nil
}

// withSession runs fn on the session's entry under the registry lock. Calls
// are serialized, so the session itself never sees concurrent access.
func (s *service) withSession(id uuid.UUID, fn func(*entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.touched = s.now()
	return fn(e)
}

func (s *service) mutate(id uuid.UUID, fn func(*assessment.Session) error) (SessionView, error) {
	var view SessionView
	err := s.withSession(id, func(e *entry) error {
		if err := fn(e.session); err != nil {
			return err
		}
		var err error
		view, err = buildView(id, e.session)
		return err
	})
	return view, err
}

func (s *service) sweepLocked() {
	if s.idleTTL <= 0 {
		return
	}
	cutoff := s.now().Add(-s.idleTTL)
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Debug("abandoned assessment discarded", zap.String("session_id", id.String()))
		}
	}
}

func buildView(id uuid.UUID, sess *assessment.Session) (SessionView, error) {
	snap, err := sess.SnapshotScore()
	if err != nil {
		return SessionView{}, err
	}
	missing := sess.MissingAncillary()
	if missing == nil {
		missing = []string{}
	}
	return SessionView{
		ID:               id,
		InstrumentID:     sess.Instrument().ID,
		Status:           sess.Status(),
		CurrentIndex:     sess.CurrentIndex(),
		QuestionCount:    sess.Instrument().QuestionCount(),
		Answers:          sess.Answers(),
		Ancillary:        sess.Ancillary(),
		MissingAncillary: missing,
		Score:            snap,
	}, nil
}
