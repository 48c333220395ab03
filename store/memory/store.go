// Package memory provides an in-memory store.Store for tests and embedded
// use. Transactions work on a copy of the state that replaces the committed
// state on success.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/role"
	"github.com/xraph/iptu/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu   sync.RWMutex // guards data
	txMu sync.Mutex   // serializes transactions
	data *state
}

func New() *Store {
	return &Store{data: newState()}
}

// InTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds. Transactions are serialized; reads outside a
// transaction never block on one.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, work); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) write(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.InTx(ctx, func(_ context.Context, tx store.Tx) error { return fn(tx) })
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Assessment methods

func (s *Store) CreateAssessment(ctx context.Context, a *assessment.Assessment) error {
	return s.write(ctx, func(tx store.Tx) error { return tx.CreateAssessment(ctx, a) })
}

func (s *Store) GetAssessment(ctx context.Context, assessmentID id.AssessmentID) (*assessment.Assessment, error) {
	return s.snapshot().GetAssessment(ctx, assessmentID)
}

func (s *Store) UpdateAssessment(ctx context.Context, a *assessment.Assessment) error {
	return s.write(ctx, func(tx store.Tx) error { return tx.UpdateAssessment(ctx, a) })
}

func (s *Store) ListAssessments(ctx context.Context, opts assessment.ListOpts) ([]*assessment.Assessment, error) {
	return s.snapshot().ListAssessments(ctx, opts)
}

func (s *Store) RecordInstallment(ctx context.Context, in *assessment.Installment) error {
	return s.write(ctx, func(tx store.Tx) error { return tx.RecordInstallment(ctx, in) })
}

func (s *Store) ListInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]*assessment.Installment, error) {
	return s.snapshot().ListInstallments(ctx, assessmentID)
}

// Role methods

func (s *Store) GetRoles(ctx context.Context) (*role.Roles, error) {
	return s.snapshot().GetRoles(ctx)
}

func (s *Store) SaveRoles(ctx context.Context, r *role.Roles) error {
	return s.write(ctx, func(tx store.Tx) error { return tx.SaveRoles(ctx, r) })
}

// Event methods

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	return s.write(ctx, func(tx store.Tx) error { return tx.AppendEvent(ctx, e) })
}

func (s *Store) LastEventSeq(ctx context.Context) (uint64, error) {
	return s.snapshot().LastEventSeq(ctx)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return s.snapshot().ListEvents(ctx, opts)
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

// ──────────────────────────────────────────────────
// state
// ──────────────────────────────────────────────────

// state is never mutated once published; transactions mutate a clone.
// Stored records are replaced, not modified in place, so clones share them.
type state struct {
	assessments  map[string]*assessment.Assessment
	order        []string
	installments map[string]map[uint32]*assessment.Installment
	roles        *role.Roles
	events       []*event.Event
}

var _ store.Tx = (*state)(nil)

func newState() *state {
	return &state{
		assessments:  make(map[string]*assessment.Assessment),
		installments: make(map[string]map[uint32]*assessment.Installment),
	}
}

func (st *state) clone() *state {
	c := &state{
		assessments:  make(map[string]*assessment.Assessment, len(st.assessments)),
		order:        append([]string(nil), st.order...),
		installments: make(map[string]map[uint32]*assessment.Installment, len(st.installments)),
		roles:        st.roles,
		events:       append([]*event.Event(nil), st.events...),
	}
	for k, v := range st.assessments {
		c.assessments[k] = v
	}
	for k, v := range st.installments {
		c.installments[k] = v
	}
	return c
}

func (st *state) CreateAssessment(_ context.Context, a *assessment.Assessment) error {
	key := a.ID.String()
	if _, exists := st.assessments[key]; exists {
		return iptu.ErrAlreadyExists
	}
	st.assessments[key] = a.Clone()
	st.order = append(st.order, key)
	return nil
}

func (st *state) GetAssessment(_ context.Context, assessmentID id.AssessmentID) (*assessment.Assessment, error) {
	if a, ok := st.assessments[assessmentID.String()]; ok {
		return a.Clone(), nil
	}
	return nil, iptu.ErrNotFound
}

func (st *state) UpdateAssessment(_ context.Context, a *assessment.Assessment) error {
	key := a.ID.String()
	if _, exists := st.assessments[key]; !exists {
		return iptu.ErrNotFound
	}
	st.assessments[key] = a.Clone()
	return nil
}

func (st *state) ListAssessments(_ context.Context, opts assessment.ListOpts) ([]*assessment.Assessment, error) {
	result := make([]*assessment.Assessment, 0)
	for _, key := range st.order {
		a := st.assessments[key]
		if !opts.Taxpayer.IsNil() && a.Taxpayer != opts.Taxpayer {
			continue
		}
		if opts.Year != 0 && a.Year != opts.Year {
			continue
		}
		if opts.Active != nil && a.Active != *opts.Active {
			continue
		}
		result = append(result, a.Clone())
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (st *state) RecordInstallment(_ context.Context, in *assessment.Installment) error {
	key := in.AssessmentID.String()
	if _, exists := st.assessments[key]; !exists {
		return iptu.ErrNotFound
	}
	prev := st.installments[key]
	if _, paid := prev[in.Number]; paid {
		return iptu.ErrAlreadyPaid
	}
	next := make(map[uint32]*assessment.Installment, len(prev)+1)
	for n, r := range prev {
		next[n] = r
	}
	cp := *in
	next[in.Number] = &cp
	st.installments[key] = next
	return nil
}

func (st *state) ListInstallments(_ context.Context, assessmentID id.AssessmentID) ([]*assessment.Installment, error) {
	receipts := st.installments[assessmentID.String()]
	result := make([]*assessment.Installment, 0, len(receipts))
	for _, r := range receipts {
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (st *state) GetRoles(_ context.Context) (*role.Roles, error) {
	if st.roles == nil {
		return nil, iptu.ErrNotFound
	}
	cp := *st.roles
	return &cp, nil
}

func (st *state) SaveRoles(_ context.Context, r *role.Roles) error {
	cp := *r
	st.roles = &cp
	return nil
}

func (st *state) AppendEvent(_ context.Context, e *event.Event) error {
	cp := *e
	st.events = append(st.events, &cp)
	return nil
}

func (st *state) LastEventSeq(_ context.Context) (uint64, error) {
	if len(st.events) == 0 {
		return 0, nil
	}
	return st.events[len(st.events)-1].Seq, nil
}

func (st *state) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	result := make([]*event.Event, 0)
	for _, e := range st.events {
		if e.Seq <= opts.AfterSeq {
			continue
		}
		if !opts.AssessmentID.IsNil() && e.AssessmentID.String() != opts.AssessmentID.String() {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return page(result, 0, opts.Limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
