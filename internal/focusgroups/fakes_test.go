package focusgroups

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
)

type memberKey struct {
	focusGroupID uuid.UUID
	userID       uuid.UUID
}

type fakeGroup struct {
	total     int
	available int
	isFull    bool
	bound     *uuid.UUID
}

// fakeStore behaves like the Postgres schema: the active count drives available_spots, and
// an active insert into a full group is rejected unless the applicant is staff.
type fakeStore struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]*fakeGroup
	members map[memberKey]models.MembershipStatus
	staff   map[uuid.UUID]bool
	// stale, when set, is returned by GetCapacity instead of the live counters.
	stale *models.Capacity
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:  map[uuid.UUID]*fakeGroup{},
		members: map[memberKey]models.MembershipStatus{},
		staff:   map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) addGroup(total, available int, isFull bool, bound *uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.groups[id] = &fakeGroup{total: total, available: available, isFull: isFull, bound: bound}
	return id
}

func (f *fakeStore) status(fg, user uuid.UUID) (models.MembershipStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.members[memberKey{fg, user}]
	return s, ok
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.FocusGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, ErrFocusGroupNotFound
	}
	return &models.FocusGroup{ID: id, TotalSpots: g.total, AvailableSpots: g.available, IsFull: g.isFull, GroupID: g.bound}, nil
}

func (f *fakeStore) GetCapacity(_ context.Context, id uuid.UUID) (models.Capacity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return models.Capacity{}, ErrFocusGroupNotFound
	}
	if f.stale != nil {
		return *f.stale, nil
	}
	return models.Capacity{AvailableSpots: g.available, TotalSpots: g.total, IsFull: g.isFull, BoundGroupID: g.bound}, nil
}

func (f *fakeStore) FindMembership(_ context.Context, fg, user uuid.UUID) (*models.FocusGroupMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.members[memberKey{fg, user}]
	if !ok {
		return nil, nil
	}
	return &models.FocusGroupMembership{FocusGroupID: fg, UserID: user, Status: s}, nil
}

func (f *fakeStore) InsertMembership(_ context.Context, fg, user uuid.UUID, status models.MembershipStatus) (*models.FocusGroupMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[fg]
	if !ok {
		return nil, ErrFocusGroupNotFound
	}
	k := memberKey{fg, user}
	if _, ok := f.members[k]; ok {
		return nil, ErrAlreadyMember
	}
	if status == models.MembershipActive {
		if g.available <= 0 && !f.staff[user] {
			return nil, &CapacityError{Message: "focus group is full"}
		}
		if g.available > 0 {
			g.available--
		}
		g.isFull = g.available == 0
	}
	f.members[k] = status
	return &models.FocusGroupMembership{FocusGroupID: fg, UserID: user, Status: status}, nil
}

func (f *fakeStore) DeleteMembership(_ context.Context, fg, user uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := memberKey{fg, user}
	s, ok := f.members[k]
	if !ok {
		return false, nil
	}
	delete(f.members, k)
	if g, ok := f.groups[fg]; ok && s == models.MembershipActive {
		if g.available < g.total {
			g.available++
		}
		g.isFull = g.available == 0
	}
	return true, nil
}

func (f *fakeStore) ListMembers(_ context.Context, fg uuid.UUID, status *models.MembershipStatus) ([]models.FocusGroupMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FocusGroupMember
	for k, s := range f.members {
		if k.focusGroupID == fg && (status == nil || *status == s) {
			out = append(out, models.FocusGroupMember{UserID: k.userID, Status: s})
		}
	}
	return out, nil
}

// fakeBinder records group seats and can be told to fail.
type fakeBinder struct {
	mu    sync.Mutex
	seats map[memberKey]bool
	fail  bool
	calls int
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{seats: map[memberKey]bool{}}
}

func (b *fakeBinder) Bind(_ context.Context, group, user uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail {
		return errors.New("group_members insert failed")
	}
	b.seats[memberKey{group, user}] = true
	return nil
}

func (b *fakeBinder) Unbind(_ context.Context, group, user uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail {
		return errors.New("group_members delete failed")
	}
	delete(b.seats, memberKey{group, user})
	return nil
}

func (b *fakeBinder) seated(group, user uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seats[memberKey{group, user}]
}

// MockResolver implements auth.IdentityResolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, id uuid.UUID) (auth.Identity, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(auth.Identity), args.Error(1)
}

func resolverFor(roles map[uuid.UUID]models.Role) *MockResolver {
	r := new(MockResolver)
	for id, role := range roles {
		r.On("Resolve", mock.Anything, id).Return(auth.Identity{UserID: id, Role: role}, nil)
	}
	return r
}

// recordingPublisher captures bus events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []MembershipEvent
}

func (p *recordingPublisher) Publish(topic string, payload any) {
	if topic != EventTopic {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload.(MembershipEvent))
}

// mockStore is a testify mock of Store for error-path tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.FocusGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FocusGroup), args.Error(1)
}

func (m *mockStore) GetCapacity(ctx context.Context, id uuid.UUID) (models.Capacity, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Capacity), args.Error(1)
}

func (m *mockStore) FindMembership(ctx context.Context, fg, user uuid.UUID) (*models.FocusGroupMembership, error) {
	args := m.Called(ctx, fg, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FocusGroupMembership), args.Error(1)
}

func (m *mockStore) InsertMembership(ctx context.Context, fg, user uuid.UUID, status models.MembershipStatus) (*models.FocusGroupMembership, error) {
	args := m.Called(ctx, fg, user, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FocusGroupMembership), args.Error(1)
}

func (m *mockStore) DeleteMembership(ctx context.Context, fg, user uuid.UUID) (bool, error) {
	args := m.Called(ctx, fg, user)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListMembers(ctx context.Context, fg uuid.UUID, status *models.MembershipStatus) ([]models.FocusGroupMember, error) {
	args := m.Called(ctx, fg, status)
	return args.Get(0).([]models.FocusGroupMember), args.Error(1)
}
