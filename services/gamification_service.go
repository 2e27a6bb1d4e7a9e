// Package services coordinates the gamification engine with the store.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/gamification"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/rewards"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
)

const (
	maxCASAttempts      = 5
	DefaultLeaderboard  = 10
	MaxLeaderboardLimit = 100
)

type Validation struct {
	Exists  bool               `json:"exists"`
	Created bool               `json:"created"`
	Profile models.UserProfile `json:"profile"`
}

type PurchaseResult struct {
	Success        bool   `json:"success"`
	ItemPurchased  string `json:"item_purchased"`
	ItemID         string `json:"shop_item_id"`
	CoinsSpent     int    `json:"coins_spent"`
	CoinsRemaining int    `json:"coins_remaining"`
}

type GamificationService struct {
	repo  db.Repository
	table rewards.Table
}

func NewGamificationService(repo db.Repository, table rewards.Table) *GamificationService {
	if table == nil {
		table = rewards.Default()
	}
	return &GamificationService{repo: repo, table: table}
}

// CompleteTask awards one completed action. Unknown action types and
// difficulties are resolved against the reward table before they are
// recorded.
func (s *GamificationService) CompleteTask(ctx context.Context, userID string, action rewards.ActionType, difficulty rewards.Difficulty) (gamification.Outcome, error) {
	const op = "services.complete_task"
	if err := requireUser(op, userID); err != nil {
		return gamification.Outcome{}, err
	}
	action, difficulty = s.table.Resolve(action, difficulty)

	var outcome gamification.Outcome
	err := s.retryOnConflict(ctx, op, userID, func(tx db.Repository) error {
		p, _, err := tx.GetOrCreateProfile(ctx, userID)
		if err != nil {
			return err
		}

		var updated models.UserProfile
		updated, outcome = gamification.CompleteTask(p, action, difficulty, s.table)
		if _, err := tx.UpdateProfileCAS(ctx, updated); err != nil {
			return err
		}
		return tx.RecordCompletion(ctx, models.TaskCompletion{
			UserID:      userID,
			TaskType:    string(action),
			Difficulty:  string(difficulty),
			XPEarned:    outcome.XPEarned,
			CoinsEarned: outcome.CoinsEarned,
			LevelUp:     outcome.LevelUp,
		})
	})
	if err != nil {
		return gamification.Outcome{}, err
	}

	utils.TasksCompleted.WithLabelValues(string(action), string(difficulty)).Inc()
	if outcome.LevelUp {
		utils.LevelUps.Inc()
	}
	utils.Logger.Info("task_completed",
		zap.String("user_id", userID),
		zap.String("task_type", string(action)),
		zap.String("difficulty", string(difficulty)),
		zap.Int("xp_earned", outcome.XPEarned),
		zap.Int("new_level", outcome.NewLevel),
		zap.Bool("level_up", outcome.LevelUp),
	)
	return outcome, nil
}

// Purchase debits the price and records ownership in one transaction.
func (s *GamificationService) Purchase(ctx context.Context, userID, itemID string) (PurchaseResult, error) {
	const op = "services.purchase"
	if err := requireUser(op, userID); err != nil {
		return PurchaseResult{}, err
	}
	if strings.TrimSpace(itemID) == "" {
		return PurchaseResult{}, apperr.Validation(op, "shop_item_id is required")
	}

	var result PurchaseResult
	err := s.retryOnConflict(ctx, op, userID, func(tx db.Repository) error {
		p, _, err := tx.GetOrCreateProfile(ctx, userID)
		if err != nil {
			return err
		}
		item, err := tx.GetShopItem(ctx, itemID)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(op, "shop item not found")
		}
		if err != nil {
			return err
		}
		owned, err := tx.HasPurchase(ctx, userID, itemID)
		if err != nil {
			return err
		}

		updated, err := gamification.Purchase(p, item, owned)
		if err != nil {
			return err
		}
		if updated, err = tx.UpdateProfileCAS(ctx, updated); err != nil {
			return err
		}
		if _, err := tx.CreatePurchase(ctx, userID, itemID); err != nil {
			return err
		}

		result = PurchaseResult{
			Success:        true,
			ItemPurchased:  item.Name,
			ItemID:         item.ID,
			CoinsSpent:     item.CoinPrice,
			CoinsRemaining: updated.Coins,
		}
		return nil
	})

	if err != nil {
		utils.Purchases.WithLabelValues(purchaseResultLabel(err)).Inc()
		utils.Logger.Info("purchase_rejected",
			zap.String("user_id", userID),
			zap.String("shop_item_id", itemID),
			zap.Error(err),
		)
		return PurchaseResult{}, err
	}

	utils.Purchases.WithLabelValues("success").Inc()
	utils.Logger.Info("item_purchased",
		zap.String("user_id", userID),
		zap.String("shop_item_id", itemID),
		zap.Int("coins_remaining", result.CoinsRemaining),
	)
	return result, nil
}

// retryOnConflict runs fn in a transaction. A version conflict rolls the
// attempt back and starts over from a fresh read, up to maxCASAttempts.
func (s *GamificationService) retryOnConflict(ctx context.Context, op, userID string, fn func(tx db.Repository) error) error {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		err := s.repo.WithTx(ctx, fn)
		if errors.Is(err, db.ErrVersionConflict) {
			utils.Logger.Debug("profile_version_conflict",
				zap.String("op", op),
				zap.String("user_id", userID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return storeError(op, err)
		}
		return nil
	}

	utils.Logger.Warn("profile_contended", zap.String("op", op), zap.String("user_id", userID))
	return apperr.Wrap(apperr.KindConflict, op, "profile is busy, try again", db.ErrVersionConflict)
}

func (s *GamificationService) ValidateUser(ctx context.Context, userID string) (Validation, error) {
	const op = "services.validate_user"
	if err := requireUser(op, userID); err != nil {
		return Validation{}, err
	}
	p, created, err := s.repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return Validation{}, storeError(op, err)
	}
	if created {
		utils.Logger.Info("profile_created", zap.String("user_id", userID))
	}
	return Validation{Exists: !created, Created: created, Profile: p}, nil
}

func (s *GamificationService) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	const op = "services.profile"
	if err := requireUser(op, userID); err != nil {
		return models.UserProfile{}, err
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return p, storeError(op, err)
	}
	return p, nil
}

func (s *GamificationService) Shop(ctx context.Context) ([]models.ShopItem, error) {
	items, err := s.repo.ListShopItems(ctx)
	if err != nil {
		return nil, storeError("services.shop", err)
	}
	return items, nil
}

func (s *GamificationService) Purchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	const op = "services.purchases"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	purchases, err := s.repo.ListPurchases(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return purchases, nil
}

// Leaderboard clamps limit into [1, MaxLeaderboardLimit].
func (s *GamificationService) Leaderboard(ctx context.Context, limit int) ([]models.UserProfile, error) {
	if limit <= 0 {
		limit = DefaultLeaderboard
	}
	limit = min(limit, MaxLeaderboardLimit)
	profiles, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, storeError("services.leaderboard", err)
	}
	return profiles, nil
}

func requireUser(op, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation(op, "user_id is required")
	}
	return nil
}

// storeError maps store and engine sentinels onto the error taxonomy.
func storeError(op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, gamification.ErrInsufficientFunds):
		return apperr.Wrap(apperr.KindValidation, op, "not enough coins", err)
	case errors.Is(err, gamification.ErrAlreadyOwned), errors.Is(err, db.ErrDuplicate):
		return apperr.Wrap(apperr.KindConflict, op, "item already owned", err)
	case errors.Is(err, db.ErrInconsistent):
		return apperr.Wrap(apperr.KindValidation, op, "profile level does not match xp", err)
	case errors.Is(err, db.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, op, "user profile not found", err)
	default:
		return apperr.Wrap(apperr.KindInternal, op, "", err)
	}
}

func purchaseResultLabel(err error) string {
	switch {
	case errors.Is(err, gamification.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, gamification.ErrAlreadyOwned), errors.Is(err, db.ErrDuplicate):
		return "already_owned"
	case apperr.Is(err, apperr.KindNotFound):
		return "not_found"
	default:
		return "error"
	}
}
