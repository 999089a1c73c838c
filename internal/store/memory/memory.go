// Package memory implements store.Store in process memory. It backs tests
// and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store"
)

type memStore struct {
	mu          sync.RWMutex
	users       map[string]*model.User
	turns       map[string][]*model.Turn              // by user id, append order
	descriptors map[string]map[string]*model.MeetingDescriptor // user id → descriptor id
}

// New returns an empty in-memory store.
func New() store.Store {
	return &memStore{
		users:       map[string]*model.User{},
		turns:       map[string][]*model.Turn{},
		descriptors: map[string]map[string]*model.MeetingDescriptor{},
	}
}

func (s *memStore) Users() store.Users             { return (*usersOps)(s) }
func (s *memStore) Turns() store.Turns             { return (*turnsOps)(s) }
func (s *memStore) Descriptors() store.Descriptors { return (*descOps)(s) }

type usersOps memStore

func (u *usersOps) GetOrCreate(ctx context.Context, userID, defaultTZ string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if got, ok := u.users[userID]; ok {
		cp := *got
		return &cp, nil
	}
	usr := &model.User{UserID: userID, TimeZone: defaultTZ, CreationTime: time.Now().UTC()}
	u.users[userID] = usr
	cp := *usr
	return &cp, nil
}

func (u *usersOps) Get(ctx context.Context, userID string) (*model.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	got, ok := u.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *got
	return &cp, nil
}

type turnsOps memStore

func (t *turnsOps) Create(ctx context.Context, in *model.Turn) (*model.Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := *in
	if out.TurnID == "" {
		out.TurnID = uuid.New().String()
	}
	cp := out
	t.turns[out.UserID] = append(t.turns[out.UserID], &cp)
	return &out, nil
}

func (t *turnsOps) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Turn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := t.turns[userID]
	res := make([]*model.Turn, 0, limit)
	for i := len(all) - 1; i >= 0 && len(res) < limit; i-- {
		cp := *all[i]
		res = append(res, &cp)
	}
	return res, nil
}

type descOps memStore

func (d *descOps) byUser(userID string) map[string]*model.MeetingDescriptor {
	m, ok := d.descriptors[userID]
	if !ok {
		m = map[string]*model.MeetingDescriptor{}
		d.descriptors[userID] = m
	}
	return m
}

func (d *descOps) Create(ctx context.Context, in *model.MeetingDescriptor) (*model.MeetingDescriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := *in
	if out.DescriptorID == "" {
		out.DescriptorID = uuid.New().String()
	}
	now := time.Now().UTC()
	if out.CreationTime.IsZero() {
		out.CreationTime = now
	}
	if out.UpdateTime.IsZero() {
		out.UpdateTime = now
	}
	cp := out
	d.byUser(out.UserID)[out.DescriptorID] = &cp
	return &out, nil
}

func (d *descOps) Update(ctx context.Context, in *model.MeetingDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.byUser(in.UserID)
	if _, ok := m[in.DescriptorID]; !ok {
		return model.ErrNotFound
	}
	if in.UpdateTime.IsZero() {
		in.UpdateTime = time.Now().UTC()
	}
	cp := *in
	m[in.DescriptorID] = &cp
	return nil
}

func (d *descOps) GetByID(ctx context.Context, userID, descriptorID string) (*model.MeetingDescriptor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	got, ok := d.descriptors[userID][descriptorID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *got
	return &cp, nil
}

func (d *descOps) Open(ctx context.Context, userID string) (*model.MeetingDescriptor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var best *model.MeetingDescriptor
	for _, md := range d.descriptors[userID] {
		if md.Status != model.StatusAwaitingClarification && md.Status != model.StatusConfirmed {
			continue
		}
		if best == nil || md.UpdateTime.After(best.UpdateTime) {
			best = md
		}
	}
	if best == nil {
		return nil, model.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (d *descOps) ListScheduled(ctx context.Context, userID string, from, to time.Time) ([]*model.MeetingDescriptor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var res []*model.MeetingDescriptor
	for _, md := range d.descriptors[userID] {
		if md.Status != model.StatusScheduled {
			continue
		}
		if md.Start.Before(from) || !md.Start.Before(to) {
			continue
		}
		cp := *md
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Start.Before(res[j].Start) })
	return res, nil
}
