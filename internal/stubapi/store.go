package stubapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"goaltracker/internal/auth"
	"goaltracker/internal/goals"
)

type userRecord struct {
	user auth.User
	hash []byte
}

// Store keeps users and goals in memory. Goals are scoped to their owner.
type Store struct {
	mu       sync.Mutex
	users    map[int64]userRecord
	byEmail  map[string]int64
	goals    map[int64]goals.Goal
	owner    map[int64]int64
	applied  *lru.Cache[string, goals.Goal]
	nextUser int64
	nextGoal int64
	now      func() time.Time
}

// replayCacheSize bounds how many idempotency keys are remembered.
const replayCacheSize = 1024

func newReplayCache() *lru.Cache[string, goals.Goal] {
	c, err := lru.New[string, goals.Goal](replayCacheSize)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return c
}

func NewStore() *Store {
	return &Store{
		users:   make(map[int64]userRecord),
		byEmail: make(map[string]int64),
		goals:   make(map[int64]goals.Goal),
		owner:   make(map[int64]int64),
		applied: newReplayCache(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateUser(email, name string, passwordHash []byte) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return auth.User{}, auth.ErrUserExists
	}
	s.nextUser++
	u := auth.User{ID: s.nextUser, Email: email, Name: name}
	s.users[u.ID] = userRecord{user: u, hash: passwordHash}
	s.byEmail[email] = u.ID
	return u, nil
}

func (s *Store) UserByEmail(email string) (auth.User, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return auth.User{}, nil, auth.ErrUserNotFound
	}
	rec := s.users[id]
	return rec.user, rec.hash, nil
}

func (s *Store) UserByID(id int64) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return rec.user, nil
}

// ListGoals returns the user's goals, newest first.
func (s *Store) ListGoals(uid int64) []goals.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]goals.Goal, 0)
	for id, g := range s.goals {
		if s.owner[id] == uid {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Store) CreateGoal(uid int64, in goals.NewGoal) (goals.Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return goals.Goal{}, fmt.Errorf("title is required: %w", goals.ErrValidation)
	}
	status := in.Status
	if status == "" {
		status = goals.StatusNotStarted
	}
	if !status.IsValid() {
		return goals.Goal{}, fmt.Errorf("unknown status %q: %w", status, goals.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGoal++
	now := s.now()
	g := goals.Goal{
		ID:          s.nextGoal,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		Progress:    goals.CanonicalProgress(status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.goals[g.ID] = g
	s.owner[g.ID] = uid
	return g, nil
}

func (s *Store) GetGoal(uid, id int64) (goals.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(uid, id)
}

// UpdateGoal canonicalises the patch against the stored pair. A repeated
// idempotency key returns the result of the first application.
func (s *Store) UpdateGoal(uid, id int64, patch goals.Patch, idempotencyKey string) (goals.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.lookupLocked(uid, id)
	if err != nil {
		return goals.Goal{}, err
	}
	if idempotencyKey != "" {
		if prev, ok := s.applied.Get(replayKey(uid, idempotencyKey)); ok && prev.ID == id {
			return prev, nil
		}
	}

	pair, err := goals.ApplyPatch(g.Pair(), patch)
	if err != nil {
		return goals.Goal{}, err
	}
	g = g.WithPair(pair)
	g.UpdatedAt = s.now()
	s.goals[id] = g
	if idempotencyKey != "" {
		s.applied.Add(replayKey(uid, idempotencyKey), g)
	}
	return g, nil
}

func (s *Store) DeleteGoal(uid, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookupLocked(uid, id); err != nil {
		return err
	}
	delete(s.goals, id)
	delete(s.owner, id)
	return nil
}

func (s *Store) lookupLocked(uid, id int64) (goals.Goal, error) {
	g, ok := s.goals[id]
	if !ok || s.owner[id] != uid {
		return goals.Goal{}, fmt.Errorf("goal %d: %w", id, goals.ErrNotFound)
	}
	return g, nil
}

func replayKey(uid int64, key string) string {
	return strconv.FormatInt(uid, 10) + ":" + key
}
