package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Bekzhanizb/LifeQuestBackend/gamification"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("profile was modified concurrently")
	ErrDuplicate       = errors.New("duplicate record")
	ErrInconsistent    = errors.New("profile level does not match xp")
)

// Repository is the persistence surface used by the services. WithTx
// hands fn a Repository bound to a single transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	GetProfile(ctx context.Context, userID string) (models.UserProfile, error)
	GetOrCreateProfile(ctx context.Context, userID string) (models.UserProfile, bool, error)
	UpdateProfileCAS(ctx context.Context, p models.UserProfile) (models.UserProfile, error)
	Leaderboard(ctx context.Context, limit int) ([]models.UserProfile, error)

	ListShopItems(ctx context.Context) ([]models.ShopItem, error)
	GetShopItem(ctx context.Context, id string) (models.ShopItem, error)
	HasPurchase(ctx context.Context, userID, itemID string) (bool, error)
	CreatePurchase(ctx context.Context, userID, itemID string) (models.Purchase, error)
	ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error)

	RecordCompletion(ctx context.Context, c models.TaskCompletion) error

	SaveToken(ctx context.Context, t models.OAuthToken) error
	GetToken(ctx context.Context, userID string) (models.OAuthToken, error)
}

type Store struct {
	db *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return p, nil
}

// GetOrCreateProfile reports created=true only for the caller whose insert
// actually landed; concurrent first references see the same row.
func (s *Store) GetOrCreateProfile(ctx context.Context, userID string) (models.UserProfile, bool, error) {
	fresh := models.NewUserProfile(userID)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fresh)
	if res.Error != nil {
		return models.UserProfile{}, false, fmt.Errorf("create profile %s: %w", userID, res.Error)
	}

	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return p, false, err
	}
	return p, res.RowsAffected == 1, nil
}

// UpdateProfileCAS writes p if the stored version still equals p.Version and
// returns the profile with its new version.
func (s *Store) UpdateProfileCAS(ctx context.Context, p models.UserProfile) (models.UserProfile, error) {
	if !gamification.Consistent(p) {
		return p, ErrInconsistent
	}

	res := s.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("user_id = ? AND version = ?", p.UserID, p.Version).
		Updates(map[string]interface{}{
			"xp":      p.XP,
			"coins":   p.Coins,
			"level":   p.Level,
			"streak":  p.Streak,
			"version": p.Version + 1,
		})
	if res.Error != nil {
		return p, fmt.Errorf("update profile %s: %w", p.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return p, ErrVersionConflict
	}
	p.Version++
	return p, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := s.db.WithContext(ctx).
		Order("xp DESC").
		Order("user_id ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return profiles, nil
}

func (s *Store) ListShopItems(ctx context.Context) ([]models.ShopItem, error) {
	var items []models.ShopItem
	if err := s.db.WithContext(ctx).Order("coin_price ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list shop items: %w", err)
	}
	return items, nil
}

func (s *Store) GetShopItem(ctx context.Context, id string) (models.ShopItem, error) {
	var item models.ShopItem
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return item, ErrNotFound
	}
	if err != nil {
		return item, fmt.Errorf("get shop item %s: %w", id, err)
	}
	return item, nil
}

func (s *Store) HasPurchase(ctx context.Context, userID, itemID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("user_id = ? AND shop_item_id = ?", userID, itemID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CreatePurchase(ctx context.Context, userID, itemID string) (models.Purchase, error) {
	p := models.Purchase{
		ID:         uuid.NewString(),
		UserID:     userID,
		ShopItemID: itemID,
	}
	if err := s.db.WithContext(ctx).Omit("ShopItem").Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return p, ErrDuplicate
		}
		return p, fmt.Errorf("create purchase: %w", err)
	}
	return p, nil
}

func (s *Store) ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.WithContext(ctx).
		Preload("ShopItem").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

func (s *Store) RecordCompletion(ctx context.Context, c models.TaskCompletion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// SaveToken upserts the user's credential. An empty refresh token keeps the
// stored one, since Google only returns it on the first consent.
func (s *Store) SaveToken(ctx context.Context, t models.OAuthToken) error {
	columns := []string{"access_token", "token_type", "expiry", "updated_at"}
	if t.RefreshToken != "" {
		columns = append(columns, "refresh_token")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&t).Error
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, userID string) (models.OAuthToken, error) {
	var t models.OAuthToken
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
