package intake

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"therapy-intake/internal/instrument"
)

type memRepo struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*Submission
	contacts    []*ContactRequest
	saveErr     error
	saves       int
}

func newMemRepo() *memRepo {
	return &memRepo{submissions: make(map[uuid.UUID]*Submission)}
}

func (r *memRepo) SaveSubmission(ctx context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.submissions[s.ID]; !ok {
		cp := *s
		r.submissions[s.ID] = &cp
	}
	return nil
}

func (r *memRepo) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) SaveContactRequest(ctx context.Context, c *ContactRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts = append(r.contacts, &cp)
	return nil
}

type recordingReporter struct {
	mu   sync.Mutex
	got  []Submission
	fail bool
}

func (r *recordingReporter) NotifySubmission(ctx context.Context, s Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	if r.fail {
		return errors.New("telegram unavailable")
	}
	return nil
}

func newTestService(t *testing.T, repo Repository, reporter Reporter) *service {
	t.Helper()
	catalog, err := instrument.Default()
	require.NoError(t, err)
	return NewService(catalog, repo, reporter, nil, 0).(*service)
}
