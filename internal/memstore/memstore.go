// Package memstore is an in-memory implementation of the run repository with the
// same semantics as the PostgreSQL store. It backs tests and `serve --memory`.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/types"
)

// Store holds every entity in maps guarded by one mutex
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	profiles    map[uuid.UUID]db.Profile
	profileRows map[string]map[uuid.UUID][]map[string]any // table -> profile -> rows
	jobs        map[uuid.UUID]db.Job
	reqs        map[uuid.UUID][]db.JobRequirement
	runs        map[uuid.UUID]db.Run
	history     map[uuid.UUID][]db.ContextHistoryEntry
	events      []db.RunEvent
	patches     []db.PatchSuggestion
	resumes     []db.DocumentVersion
	letters     []db.DocumentVersion
	fills       []db.FieldFillResult
	submissions map[uuid.UUID]db.ApplicationSubmission
	questions   map[string]db.Question
	answers     map[uuid.UUID]map[uuid.UUID]db.ProfileAnswer // profile -> question -> answer

	seq    int64
	fillID int64
	reqID  int64
}

// Option configures a Store
type Option func(*Store)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		now:         func() time.Time { return time.Now().UTC() },
		profiles:    make(map[uuid.UUID]db.Profile),
		profileRows: make(map[string]map[uuid.UUID][]map[string]any),
		jobs:        make(map[uuid.UUID]db.Job),
		reqs:        make(map[uuid.UUID][]db.JobRequirement),
		runs:        make(map[uuid.UUID]db.Run),
		history:     make(map[uuid.UUID][]db.ContextHistoryEntry),
		submissions: make(map[uuid.UUID]db.ApplicationSubmission),
		questions:   make(map[string]db.Question),
		answers:     make(map[uuid.UUID]map[uuid.UUID]db.ProfileAnswer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// CreateProfile inserts a profile and seeds its sub-records
func (s *Store) CreateProfile(_ context.Context, req *types.CreateProfileRequest) (*types.ProfileFacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := db.Profile{
		ID: uuid.New(), Name: req.Name, JobFamily: req.JobFamily, Summary: req.Summary,
		CreatedAt: now, UpdatedAt: now,
	}
	s.profiles[p.ID] = p
	for _, op := range db.ProfileSeedOperations(req) {
		if err := s.applyPatchLocked(p.ID, op); err != nil {
			delete(s.profiles, p.ID)
			return nil, fmt.Errorf("failed to seed %s: %w", op.Table, err)
		}
	}
	return s.factsLocked(p.ID), nil
}

// GetProfile retrieves a profile root record, or nil
func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*db.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListProfiles returns all profiles, newest first
func (s *Store) ListProfiles(_ context.Context) ([]db.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]db.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetProfileFacts loads a profile with its sub-records, or nil
func (s *Store) GetProfileFacts(_ context.Context, id uuid.UUID) (*types.ProfileFacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.profiles[id]; !ok {
		return nil, nil
	}
	return s.factsLocked(id), nil
}

func (s *Store) factsLocked(id uuid.UUID) *types.ProfileFacts {
	p := s.profiles[id]
	first := func(table string) map[string]any {
		rows := s.profileRows[table][id]
		if len(rows) == 0 {
			return nil
		}
		return rows[0]
	}
	return db.FactsFromRows(&p,
		first(types.PatchTablePersonal),
		first(types.PatchTablePreferences),
		first(types.PatchTableWorkAuth),
		s.profileRows[types.PatchTableSkills][id],
	)
}

// ApplyPatchOperation applies one whitelisted operation to the profile
func (s *Store) ApplyPatchOperation(_ context.Context, profileID uuid.UUID, op types.PatchOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyPatchLocked(profileID, op)
}

func (s *Store) applyPatchLocked(profileID uuid.UUID, op types.PatchOperation) error {
	target, err := db.ResolvePatchOperation(op)
	if err != nil {
		return err
	}
	if s.profileRows[target.Table] == nil {
		s.profileRows[target.Table] = make(map[uuid.UUID][]map[string]any)
	}
	rows := s.profileRows[target.Table][profileID]

	idx := -1
	for i, row := range rows {
		if rowMatches(row, target.Key) {
			idx = i
			break
		}
	}

	switch target.Op {
	case types.PatchOpInsert:
		if idx >= 0 {
			return nil
		}
	case types.PatchOpUpdate:
		if idx < 0 {
			return fmt.Errorf("%w: %s", db.ErrPatchTargetMissing, target.Table)
		}
	}

	if idx >= 0 {
		for col, v := range target.Values {
			rows[idx][col] = v
		}
		return nil
	}
	s.profileRows[target.Table][profileID] = append(rows, target.InsertRow())
	return nil
}

func rowMatches(row, key map[string]any) bool {
	for col, want := range key {
		if fmt.Sprint(row[col]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

// CreateJob creates a new job row for url
func (s *Store) CreateJob(_ context.Context, jobURL string) (*db.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	j := db.Job{ID: uuid.New(), URL: jobURL, Domain: db.DomainFromURL(jobURL), CreatedAt: now, UpdatedAt: now}
	s.jobs[j.ID] = j
	return &j, nil
}

// GetJob retrieves a job, or nil
func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*db.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// UpdateJobAnalysis stores the parsed posting and replaces its line items
func (s *Store) UpdateJobAnalysis(_ context.Context, jobID uuid.UUID, analysis types.JobAnalysis, text string) (*db.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	j.Title, j.Company, j.Location = analysis.Title, analysis.Company, analysis.Location
	j.JDText, j.JDHash = text, db.HashText(text)
	j.UpdatedAt = s.now()
	s.jobs[jobID] = j

	rows := db.RequirementRows(jobID, analysis)
	for i := range rows {
		s.reqID++
		rows[i].ID = s.reqID
	}
	s.reqs[jobID] = rows
	return &j, nil
}

// ListJobRequirements returns the line items of a job
func (s *Store) ListJobRequirements(_ context.Context, jobID uuid.UUID) ([]db.JobRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]db.JobRequirement(nil), s.reqs[jobID]...), nil
}
