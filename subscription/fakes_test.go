package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"youtube-notification-bot/db"
	"youtube-notification-bot/youtube"
)

type subKey struct {
	chatId     int64
	channelUrl string
}

type memoryStore struct {
	mu     sync.Mutex
	subs   map[subKey]db.Subscription
	leases map[string]db.Lease
	addErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{subs: make(map[subKey]db.Subscription), leases: make(map[string]db.Lease)}
}

func (s *memoryStore) ExistsForChat(_ context.Context, chatId int64, channelUrl string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[subKey{chatId, channelUrl}]
	return ok, nil
}

func (s *memoryStore) ExistsChannel(_ context.Context, channelId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ChannelId == channelId {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) Get(_ context.Context, chatId int64, channelUrl string) (db.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subKey{chatId, channelUrl}]
	if !ok {
		return db.Subscription{}, db.ErrNotFound
	}
	return sub, nil
}

func (s *memoryStore) Add(_ context.Context, sub db.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return false, s.addErr
	}
	key := subKey{sub.ChatId, sub.ChannelUrl}
	if _, ok := s.subs[key]; ok {
		return false, nil
	}
	sub.CreatedAt = time.Now()
	s.subs[key] = sub
	return true, nil
}

func (s *memoryStore) Remove(_ context.Context, chatId int64, channelUrl string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey{chatId, channelUrl}
	_, ok := s.subs[key]
	delete(s.subs, key)
	return ok, nil
}

func (s *memoryStore) ListByChat(_ context.Context, chatId int64) ([]db.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []db.Subscription
	for _, sub := range s.subs {
		if sub.ChatId == chatId {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].ChannelUrl < subs[j].ChannelUrl
	})
	return subs, nil
}

func (s *memoryStore) PutLease(_ context.Context, channelId string, requestedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases[channelId] = db.Lease{ChannelId: channelId, RequestedAt: requestedAt}
	return nil
}

func (s *memoryStore) GetLease(_ context.Context, channelId string) (db.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.leases[channelId]
	if !ok {
		return db.Lease{}, db.ErrNotFound
	}
	return lease, nil
}

func (s *memoryStore) ConfirmLease(_ context.Context, channelId string, leaseSeconds int, verifiedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.leases[channelId]
	if !ok {
		return false, nil
	}
	lease.LeaseSeconds = &leaseSeconds
	lease.VerifiedAt = &verifiedAt
	s.leases[channelId] = lease
	return true, nil
}

func (s *memoryStore) DeleteLease(_ context.Context, channelId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, channelId)
	return nil
}

func (s *memoryStore) rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *memoryStore) lease(channelId string) (db.Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.leases[channelId]
	return lease, ok
}

type fakeHub struct {
	mu           sync.Mutex
	subscribes   map[string]int
	unsubscribes map[string]int
	subscribeErr error
	delay        time.Duration
}

func newFakeHub() *fakeHub {
	return &fakeHub{subscribes: make(map[string]int), unsubscribes: make(map[string]int)}
}

func (h *fakeHub) Subscribe(_ context.Context, channelId string) error {
	time.Sleep(h.delay)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribeErr != nil {
		return h.subscribeErr
	}
	h.subscribes[channelId]++
	return nil
}

func (h *fakeHub) Unsubscribe(_ context.Context, channelId string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribes[channelId]++
	return nil
}

func (h *fakeHub) counts(channelId string) (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribes[channelId], h.unsubscribes[channelId]
}

type fakeResolver struct {
	mu    sync.Mutex
	ids   map[string]string
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, channelURL string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	id, ok := r.ids[channelURL]
	if !ok {
		return "", youtube.ErrChannelNotFound
	}
	return id, nil
}
