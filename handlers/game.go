package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/gamification"
	"github.com/Bekzhanizb/LifeQuestBackend/middleware"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/rewards"
	"github.com/gin-gonic/gin"
)

// LeaderboardPath is invalidated in the response cache whenever XP changes.
const LeaderboardPath = "/api/leaderboard"

type completeTaskResponse struct {
	Success bool `json:"success"`
	gamification.Outcome
}

// ownedItem is one purchase flattened with its shop item.
type ownedItem struct {
	ShopItemID  string    `json:"shop_item_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CoinPrice   int       `json:"coin_price"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type profileResponse struct {
	models.UserProfile
	XPForNextLevel     int `json:"xp_for_next_level"`
	ProgressPercentage int `json:"progress_percentage"`
}

func (h *Handler) ValidateUser(c *gin.Context) {
	v, err := h.Game.ValidateUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, "validate_user", err)
		return
	}
	if v.Created {
		middleware.InvalidatePaths(c.Request.Context(), h.Cache, LeaderboardPath)
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) CompleteTask(c *gin.Context) {
	action := rewards.ActionType(c.DefaultQuery("task_type", string(rewards.Custom)))
	difficulty := rewards.Difficulty(c.DefaultQuery("difficulty", string(rewards.Medium)))

	out, err := h.Game.CompleteTask(c.Request.Context(), c.Param("user_id"), action, difficulty)
	if err != nil {
		respondError(c, "complete_task", err)
		return
	}
	middleware.InvalidatePaths(c.Request.Context(), h.Cache, LeaderboardPath)
	c.JSON(http.StatusOK, completeTaskResponse{Success: true, Outcome: out})
}

func (h *Handler) Purchase(c *gin.Context) {
	res, err := h.Game.Purchase(c.Request.Context(), c.Param("user_id"), c.Param("shop_item_id"))
	if err != nil {
		respondError(c, "purchase", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Shop(c *gin.Context) {
	items, err := h.Game.Shop(c.Request.Context())
	if err != nil {
		respondError(c, "shop", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shop_items": items, "total_items": len(items)})
}

func (h *Handler) Purchases(c *gin.Context) {
	userID := c.Param("user_id")
	purchases, err := h.Game.Purchases(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "purchases", err)
		return
	}

	items := make([]ownedItem, 0, len(purchases))
	for _, p := range purchases {
		items = append(items, ownedItem{
			ShopItemID:  p.ShopItemID,
			Name:        p.ShopItem.Name,
			Description: p.ShopItem.Description,
			CoinPrice:   p.ShopItem.CoinPrice,
			PurchasedAt: p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"purchases":       items,
		"total_purchased": len(items),
	})
}

func (h *Handler) Profile(c *gin.Context) {
	p, err := h.Game.Profile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		UserProfile:        p,
		XPForNextLevel:     gamification.XPForNextLevel(p),
		ProgressPercentage: gamification.ProgressPercentage(p.XP),
	})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, "leaderboard", apperr.Validation("handlers.leaderboard", "limit must be a number"))
			return
		}
		limit = n
	}

	profiles, err := h.Game.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": profiles, "total": len(profiles)})
}
