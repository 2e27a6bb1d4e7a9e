// Package gamification holds the pure progression rules: XP, levels,
// coins, streaks and shop purchases. Nothing here touches storage.
package gamification

import (
	"errors"

	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/rewards"
)

const (
	XPPerLevel      = 100
	LevelUpBonus    = 25
	MaxProgressPerc = 100
)

var (
	ErrInsufficientFunds = errors.New("insufficient coins")
	ErrAlreadyOwned      = errors.New("item already owned")
)

type Outcome struct {
	XPEarned    int  `json:"xp_earned"`
	CoinsEarned int  `json:"coins_earned"`
	NewXP       int  `json:"new_xp"`
	NewCoins    int  `json:"new_coins"`
	NewLevel    int  `json:"new_level"`
	NewStreak   int  `json:"new_streak"`
	LevelUp     bool `json:"level_up"`
}

func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return max(1, xp/XPPerLevel+1)
}

// XPForNextLevel is the XP still missing before the profile levels up.
func XPForNextLevel(p models.UserProfile) int {
	return max(0, p.Level*XPPerLevel-p.XP)
}

func ProgressPercentage(xp int) int {
	return min(MaxProgressPerc, xp%XPPerLevel)
}

// CompleteTask applies one completed action to the profile. The level-up
// bonus is paid at most once per call even when several levels are crossed.
func CompleteTask(p models.UserProfile, action rewards.ActionType, difficulty rewards.Difficulty, table rewards.Table) (models.UserProfile, Outcome) {
	xp := table.Lookup(action, difficulty)
	coins := rewards.CoinsFor(xp)

	oldLevel := p.Level
	p.XP += xp
	p.Level = LevelForXP(p.XP)

	levelUp := p.Level > oldLevel
	if levelUp {
		coins += LevelUpBonus
	}
	p.Coins += coins
	p.Streak++

	return p, Outcome{
		XPEarned:    xp,
		CoinsEarned: coins,
		NewXP:       p.XP,
		NewCoins:    p.Coins,
		NewLevel:    p.Level,
		NewStreak:   p.Streak,
		LevelUp:     levelUp,
	}
}

// Purchase debits the item price. Funds are checked before ownership. On
// error the profile is returned unchanged.
func Purchase(p models.UserProfile, item models.ShopItem, owned bool) (models.UserProfile, error) {
	if p.Coins < item.CoinPrice {
		return p, ErrInsufficientFunds
	}
	if owned {
		return p, ErrAlreadyOwned
	}
	p.Coins -= item.CoinPrice
	return p, nil
}

// Consistent reports whether the stored level matches the XP curve.
func Consistent(p models.UserProfile) bool {
	return p.XP >= 0 && p.Coins >= 0 && p.Streak >= 0 && p.Level == LevelForXP(p.XP)
}
