package leaderboard

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/heartpoints/internal/common"
)

type stubProfiles struct {
	profiles  map[int64]*Profile
	reminders map[int64]time.Time
	err       error
}

func newStubProfiles(list ...*Profile) *stubProfiles {
	s := &stubProfiles{profiles: make(map[int64]*Profile), reminders: make(map[int64]time.Time)}
	for _, p := range list {
		s.profiles[p.UserID] = p
	}
	return s
}

func (s *stubProfiles) SetScore(_ context.Context, userID int64, score int64) error {
	if s.err != nil {
		return s.err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return common.ErrNotFound
	}
	p.PublicScore = score
	return nil
}

func (s *stubProfiles) Upsert(_ context.Context, p *Profile) error {
	if cur, ok := s.profiles[p.UserID]; ok {
		if p.DisplayName != "" {
			cur.DisplayName = p.DisplayName
		}
		if p.TelegramChatID != nil {
			cur.TelegramChatID = p.TelegramChatID
		}
		return nil
	}
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *stubProfiles) Get(_ context.Context, userID int64) (*Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p, nil
}

func (s *stubProfiles) sorted() []*Profile {
	var list []*Profile
	for _, p := range s.profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].PublicScore != list[j].PublicScore {
			return list[i].PublicScore > list[j].PublicScore
		}
		return list[i].UserID < list[j].UserID
	})
	return list
}

func (s *stubProfiles) Top(_ context.Context, limit int) ([]*Profile, error) {
	list := s.sorted()
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *stubProfiles) Rank(_ context.Context, userID int64) (int, error) {
	for i, p := range s.sorted() {
		if p.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, common.ErrNotFound
}

func (s *stubProfiles) ClaimReminder(_ context.Context, userID int64, day time.Time) (int64, bool, error) {
	p, ok := s.profiles[userID]
	if !ok || p.TelegramChatID == nil {
		return 0, false, nil
	}
	if last, ok := s.reminders[userID]; ok && !last.Before(day) {
		return 0, false, nil
	}
	s.reminders[userID] = day
	return *p.TelegramChatID, true, nil
}

func TestSync_Push(t *testing.T) {
	store := newStubProfiles(&Profile{UserID: 1})
	sync := NewSync(store)
	ctx := context.Background()

	require.NoError(t, sync.Push(ctx, 1, 120))
	assert.Equal(t, int64(120), store.profiles[1].PublicScore)

	err := sync.Push(ctx, 2, 50)
	assert.ErrorIs(t, err, common.ErrLeaderboardSync)
	assert.ErrorIs(t, err, common.ErrNotFound)

	store.err = errors.New("timeout")
	err = sync.Push(ctx, 1, 130)
	assert.ErrorIs(t, err, common.ErrLeaderboardSync)
	assert.Equal(t, int64(120), store.profiles[1].PublicScore)
}

func TestService_Top(t *testing.T) {
	store := newStubProfiles(
		&Profile{UserID: 3, DisplayName: "Маша", PublicScore: 50},
		&Profile{UserID: 1, PublicScore: 80},
		&Profile{UserID: 2, DisplayName: "Петя", PublicScore: 50},
	)
	svc := NewService(store)

	entries, err := svc.Top(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Rank: 1, UserID: 1, Name: "Игрок 1", Score: 80},
		{Rank: 2, UserID: 2, Name: "Петя", Score: 50},
		{Rank: 3, UserID: 3, Name: "Маша", Score: 50},
	}, entries)

	entries, err = svc.Top(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rank, err := svc.Rank(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
}

func TestService_RegisterKeepsScore(t *testing.T) {
	store := newStubProfiles(&Profile{UserID: 7, DisplayName: "old", PublicScore: 40})
	svc := NewService(store)
	chat := int64(700)

	require.NoError(t, svc.Register(context.Background(), 7, "", &chat))

	p := store.profiles[7]
	assert.Equal(t, "old", p.DisplayName)
	assert.Equal(t, int64(40), p.PublicScore)
	require.NotNil(t, p.TelegramChatID)
	assert.Equal(t, int64(700), *p.TelegramChatID)
}

func TestService_ClaimReminderOncePerDay(t *testing.T) {
	chat := int64(500)
	store := newStubProfiles(&Profile{UserID: 5, TelegramChatID: &chat}, &Profile{UserID: 6})
	svc := NewService(store)
	ctx := context.Background()
	day := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	chatID, ok, err := svc.ClaimReminder(ctx, 5, day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, chat, chatID)

	_, ok, err = svc.ClaimReminder(ctx, 5, day)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.ClaimReminder(ctx, 6, day)
	require.NoError(t, err)
	assert.False(t, ok, "без чата напоминать некуда")
}
