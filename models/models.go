package models

import "time"

const (
	StartingCoins = 100
	StartingLevel = 1
)

type UserProfile struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"user_id"`
	XP        int       `gorm:"not null;default:0" json:"xp"`
	Coins     int       `gorm:"not null;default:100" json:"coins"`
	Level     int       `gorm:"not null;default:1" json:"level"`
	Streak    int       `gorm:"not null;default:0" json:"streak"`
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewUserProfile returns the profile a user gets on first reference.
func NewUserProfile(userID string) UserProfile {
	return UserProfile{
		UserID: userID,
		Coins:  StartingCoins,
		Level:  StartingLevel,
	}
}

type ShopItem struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	CoinPrice   int    `gorm:"not null" json:"coin_price"`
}

type Purchase struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:128;not null;uniqueIndex:idx_purchase_owner" json:"user_id"`
	ShopItemID string    `gorm:"size:64;not null;uniqueIndex:idx_purchase_owner" json:"shop_item_id"`
	ShopItem   ShopItem  `gorm:"foreignKey:ShopItemID" json:"shop_item"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"purchased_at"`
}

type TaskCompletion struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:128;not null;index" json:"user_id"`
	TaskType    string    `gorm:"size:32;not null" json:"task_type"`
	Difficulty  string    `gorm:"size:16;not null" json:"difficulty"`
	XPEarned    int       `json:"xp_earned"`
	CoinsEarned int       `json:"coins_earned"`
	LevelUp     bool      `json:"level_up"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// OAuthToken is a user's Google credential for the calendar API.
type OAuthToken struct {
	UserID       string    `gorm:"primaryKey;size:128" json:"user_id"`
	AccessToken  string    `gorm:"not null" json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
