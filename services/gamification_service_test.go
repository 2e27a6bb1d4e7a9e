package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/gamification"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/rewards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteService(t *testing.T) (*GamificationService, *db.Store) {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "lifequest.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	_, err = db.SeedShop(conn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := db.NewStore(conn)
	return NewGamificationService(store, rewards.Default()), store
}

// memRepo is an in-memory Repository with real version checks. beforeCAS
// runs right before each compare-and-swap so tests can interleave writers.
type memRepo struct {
	db.Repository

	mu        sync.Mutex
	profiles  map[string]models.UserProfile
	casCalls  int
	beforeCAS func(n int)
	records   []models.TaskCompletion
	items     map[string]models.ShopItem
	owned     map[string]bool
}

func newMemRepo() *memRepo {
	items := map[string]models.ShopItem{}
	for _, item := range db.DefaultShopItems() {
		items[item.ID] = item
	}
	return &memRepo{profiles: map[string]models.UserProfile{}, items: items, owned: map[string]bool{}}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(tx db.Repository) error) error {
	return fn(r)
}

func (r *memRepo) GetOrCreateProfile(_ context.Context, userID string) (models.UserProfile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[userID]; ok {
		return p, false, nil
	}
	p := models.NewUserProfile(userID)
	r.profiles[userID] = p
	return p, true, nil
}

func (r *memRepo) UpdateProfileCAS(_ context.Context, p models.UserProfile) (models.UserProfile, error) {
	r.mu.Lock()
	r.casCalls++
	n := r.casCalls
	hook := r.beforeCAS
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profiles[p.UserID].Version != p.Version {
		return p, db.ErrVersionConflict
	}
	p.Version++
	r.profiles[p.UserID] = p
	return p, nil
}

func (r *memRepo) RecordCompletion(_ context.Context, c models.TaskCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, c)
	return nil
}

func (r *memRepo) GetShopItem(_ context.Context, id string) (models.ShopItem, error) {
	item, ok := r.items[id]
	if !ok {
		return item, db.ErrNotFound
	}
	return item, nil
}

func (r *memRepo) HasPurchase(_ context.Context, userID, itemID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owned[userID+"/"+itemID], nil
}

func (r *memRepo) CreatePurchase(_ context.Context, userID, itemID string) (models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "/" + itemID
	if r.owned[key] {
		return models.Purchase{}, db.ErrDuplicate
	}
	r.owned[key] = true
	return models.Purchase{UserID: userID, ShopItemID: itemID}, nil
}

// buy simulates a concurrent request that bought the item first.
func (r *memRepo) buy(userID, itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[userID]
	p.Coins -= r.items[itemID].CoinPrice
	p.Version++
	r.profiles[userID] = p
	r.owned[userID+"/"+itemID] = true
}

// bump simulates another writer landing between read and write.
func (r *memRepo) bump(userID string, xp int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[userID]
	p.XP += xp
	p.Version++
	r.profiles[userID] = p
}

func TestCompleteTask_Scenario(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, _, err := store.GetOrCreateProfile(ctx, "u1")
	require.NoError(t, err)
	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	p.XP, p.Coins, p.Level = 95, 10, 1
	_, err = store.UpdateProfileCAS(ctx, p)
	require.NoError(t, err)

	out, err := svc.CompleteTask(ctx, "u1", rewards.Assignment, rewards.Medium)
	require.NoError(t, err)

	assert.Equal(t, 20, out.XPEarned)
	assert.Equal(t, 35, out.CoinsEarned)
	assert.Equal(t, 115, out.NewXP)
	assert.Equal(t, 45, out.NewCoins)
	assert.Equal(t, 2, out.NewLevel)
	assert.Equal(t, 1, out.NewStreak)
	assert.True(t, out.LevelUp)

	stored, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 115, stored.XP)
	assert.Equal(t, 45, stored.Coins)
	assert.Equal(t, 2, stored.Level)
}

func TestCompleteTask_CreatesProfileOnFirstReference(t *testing.T) {
	svc, store := newSQLiteService(t)

	out, err := svc.CompleteTask(context.Background(), "fresh", rewards.DailyHabit, rewards.Easy)
	require.NoError(t, err)
	assert.Equal(t, 8, out.NewXP)
	assert.Equal(t, 104, out.NewCoins)

	p, err := store.GetProfile(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, 8, p.XP)
}

func TestCompleteTask_ConcurrentCompletionsLoseNoUpdates(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteTask(ctx, "racer", rewards.Exercise, rewards.Medium)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := store.GetProfile(ctx, "racer")
	require.NoError(t, err)
	assert.Equal(t, n*15, p.XP)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, n, p.Streak)
	assert.Equal(t, 100+n*7+25, p.Coins)
}

func TestCompleteTask_RecomputesAfterInterleavedWrite(t *testing.T) {
	repo := newMemRepo()
	svc := NewGamificationService(repo, nil)
	repo.beforeCAS = func(n int) {
		if n == 1 {
			repo.bump("u1", 10)
		}
	}

	out, err := svc.CompleteTask(context.Background(), "u1", rewards.Exercise, rewards.Medium)
	require.NoError(t, err)

	assert.Equal(t, 25, out.NewXP, "the interleaved +10 must survive")
	assert.Equal(t, 2, repo.casCalls)
	assert.Len(t, repo.records, 1)
	assert.Equal(t, 25, repo.profiles["u1"].XP)
}

func TestCompleteTask_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemRepo()
	svc := NewGamificationService(repo, nil)
	repo.beforeCAS = func(int) { repo.bump("u1", 1) }

	_, err := svc.CompleteTask(context.Background(), "u1", rewards.Custom, rewards.Easy)

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.ErrorIs(t, err, db.ErrVersionConflict)
	assert.Equal(t, maxCASAttempts, repo.casCalls)
	assert.Empty(t, repo.records)
}

func TestCompleteTask_RecordsResolvedInput(t *testing.T) {
	repo := newMemRepo()
	svc := NewGamificationService(repo, nil)

	out, err := svc.CompleteTask(context.Background(), "u1", rewards.ActionType(strings.Repeat("t", 100)), "legendary")
	require.NoError(t, err)
	assert.Equal(t, rewards.FallbackXP, out.XPEarned)

	require.Len(t, repo.records, 1)
	assert.Equal(t, string(rewards.Custom), repo.records[0].TaskType)
	assert.Equal(t, string(rewards.Unrated), repo.records[0].Difficulty)
}

func TestCompleteTask_RequiresUser(t *testing.T) {
	svc := NewGamificationService(newMemRepo(), nil)
	_, err := svc.CompleteTask(context.Background(), " ", rewards.Custom, rewards.Easy)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPurchase_Success(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	res, err := svc.Purchase(ctx, "u1", "round-glasses")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Glasses", res.ItemPurchased)
	assert.Equal(t, "round-glasses", res.ItemID)
	assert.Equal(t, 40, res.CoinsSpent)
	assert.Equal(t, 60, res.CoinsRemaining)

	purchases, err := store.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "round-glasses", purchases[0].ShopItem.ID)
}

func TestPurchase_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, err := svc.ValidateUser(ctx, "u1")
	require.NoError(t, err)
	before, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, "u1", "golden-crown")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 400, apperr.HTTPStatus(apperr.KindOf(err)))

	after, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before.Coins, after.Coins)
	assert.Equal(t, before.Version, after.Version)

	purchases, err := store.ListPurchases(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestPurchase_DoublePurchaseIsRejected(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, err := svc.Purchase(ctx, "u1", "curly-hair")
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, "u1", "curly-hair")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Coins)
}

func TestPurchase_RetriesAfterInterleavedWrite(t *testing.T) {
	repo := newMemRepo()
	svc := NewGamificationService(repo, nil)
	repo.beforeCAS = func(n int) {
		if n == 1 {
			repo.bump("u1", 10)
		}
	}

	res, err := svc.Purchase(context.Background(), "u1", "round-glasses")
	require.NoError(t, err)
	assert.Equal(t, 60, res.CoinsRemaining)
	assert.Equal(t, 2, repo.casCalls)

	p := repo.profiles["u1"]
	assert.Equal(t, 10, p.XP, "the interleaved write must survive")
	assert.Equal(t, 60, p.Coins)
	assert.True(t, repo.owned["u1/round-glasses"])
}

func TestPurchase_RacingDoublePurchaseIsAlreadyOwned(t *testing.T) {
	repo := newMemRepo()
	svc := NewGamificationService(repo, nil)
	repo.beforeCAS = func(n int) {
		if n == 1 {
			repo.buy("u1", "round-glasses")
		}
	}

	_, err := svc.Purchase(context.Background(), "u1", "round-glasses")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.ErrorIs(t, err, gamification.ErrAlreadyOwned)
	assert.Equal(t, 60, repo.profiles["u1"].Coins, "charged once")
}

func TestPurchase_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemRepo()
	svc := NewGamificationService(repo, nil)
	repo.beforeCAS = func(int) { repo.bump("u1", 1) }

	_, err := svc.Purchase(context.Background(), "u1", "round-glasses")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.ErrorIs(t, err, db.ErrVersionConflict)
	assert.Equal(t, maxCASAttempts, repo.casCalls)
	assert.False(t, repo.owned["u1/round-glasses"])
}

func TestPurchase_UnknownItemRollsBack(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	_, err := svc.Purchase(ctx, "ghost", "no-such-item")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = store.GetProfile(ctx, "ghost")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestValidateUser(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	v, err := svc.ValidateUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, v.Created)
	assert.False(t, v.Exists)
	assert.Equal(t, models.StartingCoins, v.Profile.Coins)

	v, err = svc.ValidateUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, v.Created)
	assert.True(t, v.Exists)
}

func TestProfile_MissingIsNotFound(t *testing.T) {
	svc, _ := newSQLiteService(t)
	_, err := svc.Profile(context.Background(), "nobody")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReads(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	items, err := svc.Shop(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(db.DefaultShopItems()))

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.ValidateUser(ctx, id)
		require.NoError(t, err)
	}
	_, err = svc.CompleteTask(ctx, "b", rewards.Assignment, rewards.Hard)
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "b", board[0].UserID)

	board, err = svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, board, 3)
}
