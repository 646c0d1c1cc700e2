package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/heartpoints/internal/common"
)

var msk = time.FixedZone("MSK", 3*60*60)

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStubClock(y int, m time.Month, d int) *stubClock {
	return &stubClock{t: time.Date(y, m, d, 12, 0, 0, 0, msk)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stubClock) Advance(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, days)
}

// stubStore — хранилище в памяти с теми же правилами, что и Repository.
type stubStore struct {
	mu      sync.Mutex
	records map[int64]UserStats
	journal []*JournalEntry

	getErr    error
	createErr error
	updateErr error
	applyErr  error

	// beforeApply вызывается до блокировки, один раз
	beforeApply func()

	applyCalls int
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[int64]UserStats)}
}

func (s *stubStore) put(st UserStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[st.UserID] = st
}

func (s *stubStore) record(userID int64) UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID]
}

func (s *stubStore) Get(_ context.Context, userID int64) (*UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	st, ok := s.records[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &st, nil
}

func (s *stubStore) Create(_ context.Context, stats *UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.records[stats.UserID]; ok {
		return common.ErrAlreadyExists
	}
	s.records[stats.UserID] = *stats
	return nil
}

func (s *stubStore) Update(_ context.Context, userID int64, patch StatsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	st, ok := s.records[userID]
	if !ok {
		return common.ErrNotFound
	}
	if patch.HeartPoints != nil {
		st.HeartPoints = max(0, *patch.HeartPoints)
	}
	if patch.TotalTasksCompleted != nil {
		st.TotalTasksCompleted = *patch.TotalTasksCompleted
	}
	if patch.DailyStreak != nil {
		st.DailyStreak = *patch.DailyStreak
	}
	if patch.LongestStreak != nil {
		st.LongestStreak = *patch.LongestStreak
	}
	if patch.ClearLastDailyDate {
		st.LastDailyTaskDate = nil
	}
	s.records[userID] = st
	return nil
}

func (s *stubStore) Apply(_ context.Context, userID int64, m Mutation) (*UserStats, error) {
	s.mu.Lock()
	hook := s.beforeApply
	s.beforeApply = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	cur, ok := s.records[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	next, err := ApplyMutation(cur, m, time.Now())
	if err != nil {
		return nil, err
	}
	s.records[userID] = next
	if delta := next.HeartPoints - cur.HeartPoints; delta != 0 {
		s.journal = append(s.journal, &JournalEntry{
			UserID:       userID,
			Delta:        delta,
			BalanceAfter: next.HeartPoints,
			StreakAfter:  next.DailyStreak,
			Reason:       m.Reason,
			CreatedAt:    time.Now(),
		})
	}
	return &next, nil
}

func (s *stubStore) History(_ context.Context, userID int64, limit int) ([]*JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*JournalEntry
	for i := len(s.journal) - 1; i >= 0 && len(out) < limit; i-- {
		if s.journal[i].UserID == userID {
			out = append(out, s.journal[i])
		}
	}
	return out, nil
}

func (s *stubStore) ListStreaks(_ context.Context, minStreak int) ([]*UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*UserStats
	for _, st := range s.records {
		if st.DailyStreak >= minStreak {
			st := st
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// stubBoard — публичный счёт в памяти.
type stubBoard struct {
	mu     sync.Mutex
	scores map[int64]int64
	err    error
	pushes int
}

func newStubBoard() *stubBoard {
	return &stubBoard{scores: make(map[int64]int64)}
}

func (b *stubBoard) Push(_ context.Context, userID int64, score int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes++
	if b.err != nil {
		return b.err
	}
	b.scores[userID] = score
	return nil
}

func (b *stubBoard) score(userID int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.scores[userID]
	return v, ok
}

func (b *stubBoard) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}
