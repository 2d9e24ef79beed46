package profile

import (
	"context"
	"slices"
	"sync"

	"github.com/jonathan/speaking-coach/internal/types"
)

// Store persists profiles and the append-only record history.
type Store interface {
	// GetProfile returns nil, nil when the user has no profile yet.
	GetProfile(ctx context.Context, userID string) (*types.SpeakingProfile, error)
	SaveProfile(ctx context.Context, profile *types.SpeakingProfile) error
	AppendRecord(ctx context.Context, record types.PracticeRecord) error
	// ListRecords returns at most limit records, newest first.
	ListRecords(ctx context.Context, userID string, limit int) ([]types.PracticeRecord, error)
}

// UserLocker is implemented by stores shared between processes. LockUser
// runs fn with an exclusive lock on userID that every process using the
// store honors. fn must use the Store it is given; its writes are
// committed together when fn returns nil and discarded otherwise.
type UserLocker interface {
	LockUser(ctx context.Context, userID string, fn func(ctx context.Context, store Store) error) error
}

// MemoryStore is an in-process Store. Profiles are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*types.SpeakingProfile
	records  map[string][]types.PracticeRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*types.SpeakingProfile),
		records:  make(map[string][]types.PracticeRecord),
	}
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (*types.SpeakingProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return cloneProfile(p), nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, profile *types.SpeakingProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func (m *MemoryStore) AppendRecord(_ context.Context, record types.PracticeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.UserID] = append(m.records[record.UserID], record)
	return nil
}

func (m *MemoryStore) ListRecords(_ context.Context, userID string, limit int) ([]types.PracticeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.records[userID]
	n := min(limit, len(all))
	out := make([]types.PracticeRecord, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// cloneProfile copies p and every slice it owns. Records are immutable, so
// the record values themselves are shared.
func cloneProfile(p *types.SpeakingProfile) *types.SpeakingProfile {
	c := *p
	c.CommonStrengths = slices.Clone(p.CommonStrengths)
	c.CommonWeaknesses = slices.Clone(p.CommonWeaknesses)
	c.ImprovementAreas = slices.Clone(p.ImprovementAreas)
	c.RecentRecords = slices.Clone(p.RecentRecords)
	c.ScoreTrend = slices.Clone(p.ScoreTrend)
	return &c
}
