package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"points-bot/internal/model"
	"points-bot/internal/repository"
)

func register(t *testing.T, s *Store, userID int64, inviter *int64) {
	t.Helper()
	created, err := s.Create(context.Background(), model.Registration{
		UserID:        userID,
		Username:      "user",
		FullName:      "Test User",
		InvitedBy:     inviter,
		Bonus:         1,
		ReferralBonus: 2,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func balanceOf(t *testing.T, s *Store, userID int64) int64 {
	t.Helper()
	user, err := s.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Balance
}

func TestStore_CreateAndReferral(t *testing.T) {
	ctx := context.Background()
	s := New()

	register(t, s, 1, nil)
	inviter := int64(1)
	register(t, s, 2, &inviter)

	assert.Equal(t, int64(3), balanceOf(t, s, 1))
	assert.Equal(t, int64(1), balanceOf(t, s, 2))

	user, err := s.GetByID(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, user.InvitedBy)
	assert.Equal(t, int64(1), *user.InvitedBy)

	created, err := s.Create(ctx, model.Registration{UserID: 2, InvitedBy: &inviter, Bonus: 1, ReferralBonus: 2})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(3), balanceOf(t, s, 1), "inviter must not be credited twice")
}

func TestStore_CreateIgnoresSelfAndUnknownInviter(t *testing.T) {
	s := New()

	self := int64(5)
	register(t, s, 5, &self)
	unknown := int64(404)
	register(t, s, 6, &unknown)

	for _, id := range []int64{5, 6} {
		user, err := s.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, user.InvitedBy)
		assert.Equal(t, int64(1), user.Balance)
	}
}

func TestStore_GetByIDReturnsCopy(t *testing.T) {
	s := New()
	register(t, s, 1, nil)

	user, err := s.GetByID(context.Background(), 1)
	require.NoError(t, err)
	user.Balance = 1000

	assert.Equal(t, int64(1), balanceOf(t, s, 1))

	_, err = s.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestStore_AddBalance(t *testing.T) {
	ctx := context.Background()
	s := New()
	register(t, s, 1, nil)

	ok, err := s.AddBalance(ctx, 1, 50, model.TxTypeAdminAdd, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(51), balanceOf(t, s, 1))

	ok, err = s.AddBalance(ctx, 99, 50, model.TxTypeAdminAdd, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.AddBalance(ctx, 1, -100, model.TxTypeAdminAdd, nil)
	assert.Error(t, err)
	assert.Equal(t, int64(51), balanceOf(t, s, 1))
}

func TestStore_ConcurrentAddBalance(t *testing.T) {
	ctx := context.Background()
	s := New()
	register(t, s, 1, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddBalance(ctx, 1, 1, model.TxTypeAdminAdd, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(101), balanceOf(t, s, 1))
}

func TestStore_BlockUnblock(t *testing.T) {
	ctx := context.Background()
	s := New()
	register(t, s, 1, nil)
	register(t, s, 2, nil)

	require.NoError(t, s.Block(ctx, 2))
	require.NoError(t, s.Block(ctx, 2))

	blocked, err := s.IsBlocked(ctx, 2)
	require.NoError(t, err)
	assert.True(t, blocked)

	list, err := s.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].UserID)

	require.NoError(t, s.Unblock(ctx, 2))
	require.NoError(t, s.Unblock(ctx, 2))
	blocked, err = s.IsBlocked(ctx, 2)
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = s.IsBlocked(ctx, 404)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestStore_Checkin(t *testing.T) {
	ctx := context.Background()
	s := New()
	register(t, s, 1, nil)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	can, err := s.CanCheckin(ctx, 1, day)
	require.NoError(t, err)
	assert.True(t, can)

	ok, err := s.Checkin(ctx, 1, day, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Checkin(ctx, 1, day, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	can, err = s.CanCheckin(ctx, 1, day)
	require.NoError(t, err)
	assert.False(t, can)

	ok, err = s.Checkin(ctx, 1, day.AddDate(0, 0, 1), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(3), balanceOf(t, s, 1))

	_, err = s.CanCheckin(ctx, 99, day)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestStore_ConcurrentCheckin(t *testing.T) {
	ctx := context.Background()
	s := New()
	register(t, s, 1, nil)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Checkin(ctx, 1, day, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(2), balanceOf(t, s, 1))
}

func TestStore_ListIDsAndHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	register(t, s, 3, nil)
	register(t, s, 1, nil)
	register(t, s, 2, nil)

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	_, err = s.AddBalance(ctx, 1, 10, model.TxTypeAdminAdd, nil)
	require.NoError(t, err)

	history, err := s.GetByUserID(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.TxTypeAdminAdd, history[0].Type)
	assert.Equal(t, model.TxTypeRegistration, history[1].Type)

	history, err = s.GetByUserID(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCardKeys_PromoScenario(t *testing.T) {
	ctx := context.Background()
	s := New()
	keys := s.CardKeys()
	now := time.Now()

	for _, id := range []int64{1, 2, 3} {
		register(t, s, id, nil)
	}

	created, err := keys.Create(ctx, &model.CardKey{KeyCode: "PROMO", Balance: 20, CreatedBy: 100, MaxUses: 2})
	require.NoError(t, err)
	require.True(t, created)

	created, err = keys.Create(ctx, &model.CardKey{KeyCode: "PROMO", Balance: 5, CreatedBy: 100, MaxUses: 1})
	require.NoError(t, err)
	assert.False(t, created)

	result, err := keys.Use(ctx, "PROMO", 1, now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemResult{Outcome: model.RedeemSuccess, Credited: 20}, result)

	result, err = keys.Use(ctx, "PROMO", 1, now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemAlreadyUsed, result.Outcome)

	result, err = keys.Use(ctx, "PROMO", 2, now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemSuccess, result.Outcome)

	result, err = keys.Use(ctx, "PROMO", 3, now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemMaxUsesReached, result.Outcome)

	result, err = keys.Use(ctx, "NOPE", 3, now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemNotFound, result.Outcome)

	assert.Equal(t, int64(21), balanceOf(t, s, 1))
	assert.Equal(t, int64(21), balanceOf(t, s, 2))
	assert.Equal(t, int64(1), balanceOf(t, s, 3))

	list, err := keys.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].CurrentUses)
	assert.Equal(t, 2, list[0].MaxUses)
}

func TestCardKeys_Expired(t *testing.T) {
	ctx := context.Background()
	s := New()
	keys := s.CardKeys()
	register(t, s, 1, nil)

	now := time.Now()
	past := now.Add(-time.Hour)
	_, err := keys.Create(ctx, &model.CardKey{KeyCode: "OLD", Balance: 5, MaxUses: 10, ExpireAt: &past})
	require.NoError(t, err)

	result, err := keys.Use(ctx, "OLD", 1, now)
	require.NoError(t, err)
	assert.Equal(t, model.RedeemExpired, result.Outcome)
	assert.Equal(t, int64(1), balanceOf(t, s, 1))
}

func TestCardKeys_SingleUseContention(t *testing.T) {
	ctx := context.Background()
	s := New()
	keys := s.CardKeys()
	now := time.Now()

	const racers = 20
	for i := int64(1); i <= racers; i++ {
		register(t, s, i, nil)
	}
	_, err := keys.Create(ctx, &model.CardKey{KeyCode: "ONCE", Balance: 7, MaxUses: 1})
	require.NoError(t, err)

	outcomes := make([]model.RedeemOutcome, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := keys.Use(ctx, "ONCE", int64(i+1), now)
			assert.NoError(t, err)
			outcomes[i] = result.Outcome
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, o := range outcomes {
		if o == model.RedeemSuccess {
			successes++
		} else {
			assert.Equal(t, model.RedeemMaxUsesReached, o)
		}
	}
	assert.Equal(t, 1, successes)
}

// TestCardKeys_UsesNeverExceedMax checks that any sequence of redemption
// attempts keeps current uses within max uses and credits each user at most once.
func TestCardKeys_UsesNeverExceedMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := New()
		keys := s.CardKeys()
		now := time.Now()

		users := rapid.IntRange(1, 8).Draw(t, "users")
		for i := 1; i <= users; i++ {
			_, err := s.Create(ctx, model.Registration{UserID: int64(i)})
			if err != nil {
				t.Fatalf("create user: %v", err)
			}
		}

		maxUses := rapid.IntRange(1, 5).Draw(t, "maxUses")
		points := rapid.Int64Range(1, 100).Draw(t, "points")
		if _, err := keys.Create(ctx, &model.CardKey{KeyCode: "K", Balance: points, MaxUses: maxUses}); err != nil {
			t.Fatalf("create key: %v", err)
		}

		attempts := rapid.SliceOfN(rapid.IntRange(1, users), 0, 30).Draw(t, "attempts")
		credited := make(map[int64]bool)
		for _, uid := range attempts {
			result, err := keys.Use(ctx, "K", int64(uid), now)
			if err != nil {
				t.Fatalf("use: %v", err)
			}
			if result.Outcome == model.RedeemSuccess {
				if credited[int64(uid)] {
					t.Fatalf("user %d credited twice", uid)
				}
				credited[int64(uid)] = true
			}
		}

		list, _ := keys.List(ctx)
		if list[0].CurrentUses > maxUses {
			t.Fatalf("current uses %d exceeds max %d", list[0].CurrentUses, maxUses)
		}
		if list[0].CurrentUses != len(credited) {
			t.Fatalf("current uses %d, credited users %d", list[0].CurrentUses, len(credited))
		}
		for uid := range credited {
			user, _ := s.GetByID(ctx, uid)
			if user.Balance != points {
				t.Fatalf("user %d balance %d, want %d", uid, user.Balance, points)
			}
		}
	})
}
