package gamification

import (
	"testing"

	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/rewards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteTask_LevelUpScenario(t *testing.T) {
	p := models.UserProfile{UserID: "u1", XP: 95, Coins: 10, Level: 1, Streak: 0}

	next, out := CompleteTask(p, rewards.Assignment, rewards.Medium, rewards.Default())

	assert.Equal(t, Outcome{
		XPEarned:    20,
		CoinsEarned: 35,
		NewXP:       115,
		NewCoins:    45,
		NewLevel:    2,
		NewStreak:   1,
		LevelUp:     true,
	}, out)
	assert.Equal(t, 115, next.XP)
	assert.Equal(t, 45, next.Coins)
	assert.Equal(t, 2, next.Level)
	assert.Equal(t, 1, next.Streak)
	assert.Equal(t, 95, p.XP, "input is not mutated")
}

func TestCompleteTask_NoLevelUp(t *testing.T) {
	p := models.NewUserProfile("u1")

	next, out := CompleteTask(p, rewards.DailyHabit, rewards.Easy, rewards.Default())

	assert.False(t, out.LevelUp)
	assert.Equal(t, 8, out.XPEarned)
	assert.Equal(t, 4, out.CoinsEarned)
	assert.Equal(t, 104, next.Coins)
	assert.Equal(t, 1, next.Level)
}

func TestCompleteTask_Properties(t *testing.T) {
	table := rewards.Default()
	actions := []rewards.ActionType{rewards.DailyHabit, rewards.Exercise, rewards.Assignment, rewards.Custom, "unknown"}
	difficulties := []rewards.Difficulty{rewards.Easy, rewards.Medium, rewards.Hard, "odd"}

	p := models.NewUserProfile("u1")
	for i := 0; i < 40; i++ {
		action := actions[i%len(actions)]
		difficulty := difficulties[i%len(difficulties)]

		next, out := CompleteTask(p, action, difficulty, table)

		require.Greater(t, out.XPEarned, 0)
		assert.Equal(t, p.XP+out.XPEarned, next.XP)
		assert.GreaterOrEqual(t, next.Level, p.Level)
		assert.Equal(t, LevelForXP(next.XP), next.Level)
		assert.Equal(t, p.Streak+1, next.Streak)
		assert.Equal(t, next.Level > p.Level, out.LevelUp)

		wantCoins := rewards.CoinsFor(out.XPEarned)
		if out.LevelUp {
			wantCoins += LevelUpBonus
		}
		assert.Equal(t, wantCoins, out.CoinsEarned)
		assert.Equal(t, p.Coins+wantCoins, next.Coins)
		assert.True(t, Consistent(next))
		p = next
	}
}

func TestCompleteTask_BonusOnceWhenCrossingSeveralLevels(t *testing.T) {
	table := rewards.Table{rewards.Custom: {rewards.Hard: 250}}
	p := models.NewUserProfile("u1")

	next, out := CompleteTask(p, rewards.Custom, rewards.Hard, table)

	assert.Equal(t, 3, next.Level)
	assert.Equal(t, 125+LevelUpBonus, out.CoinsEarned)
}

func TestLevelForXP(t *testing.T) {
	assert.Equal(t, 1, LevelForXP(0))
	assert.Equal(t, 1, LevelForXP(99))
	assert.Equal(t, 2, LevelForXP(100))
	assert.Equal(t, 11, LevelForXP(1000))
	assert.Equal(t, 1, LevelForXP(-5))
}

func TestProgressHelpers(t *testing.T) {
	p := models.UserProfile{XP: 115, Level: 2}
	assert.Equal(t, 85, XPForNextLevel(p))
	assert.Equal(t, 15, ProgressPercentage(p.XP))

	p = models.UserProfile{XP: 500, Level: 2}
	assert.Equal(t, 0, XPForNextLevel(p))
}

func TestPurchase(t *testing.T) {
	item := models.ShopItem{ID: "theme-dark", CoinPrice: 50}

	t.Run("insufficient funds leaves profile unchanged", func(t *testing.T) {
		p := models.UserProfile{UserID: "u1", Coins: 10, Level: 1}
		next, err := Purchase(p, item, false)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, p, next)
	})

	t.Run("already owned", func(t *testing.T) {
		p := models.UserProfile{UserID: "u1", Coins: 500, Level: 1}
		next, err := Purchase(p, item, true)
		assert.ErrorIs(t, err, ErrAlreadyOwned)
		assert.Equal(t, 500, next.Coins)
	})

	t.Run("funds are checked before ownership", func(t *testing.T) {
		p := models.UserProfile{UserID: "u1", Coins: 10, Level: 1}
		next, err := Purchase(p, item, true)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, p, next)
	})

	t.Run("debits price", func(t *testing.T) {
		p := models.UserProfile{UserID: "u1", Coins: 50, Level: 1}
		next, err := Purchase(p, item, false)
		require.NoError(t, err)
		assert.Equal(t, 0, next.Coins)
	})
}
