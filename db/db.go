package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/config"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxConnectAttempts = 10
	connectRetryDelay  = 2 * time.Second
)

// zapWriter sends gorm's slow-query and error lines to utils.Logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	utils.Logger.Warn("gorm", zap.String("msg", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

// Connect opens the configured database, retrying while it comes up.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	gormLogger := logger.New(zapWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	gormCfg := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	if cfg.Driver == "sqlite" {
		return OpenSQLite(cfg.SQLitePath, gormCfg)
	}

	var (
		conn *gorm.DB
		err  error
	)
	for i := 0; i < maxConnectAttempts; i++ {
		conn, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err == nil {
			sqlDB, sqlErr := conn.DB()
			if sqlErr == nil {
				if err = sqlDB.Ping(); err == nil {
					sqlDB.SetMaxIdleConns(10)
					sqlDB.SetMaxOpenConns(100)
					sqlDB.SetConnMaxLifetime(time.Hour)

					utils.Logger.Info("database_connected",
						zap.String("driver", "postgres"),
						zap.String("host", cfg.Host),
					)
					return conn, nil
				}
			} else {
				err = sqlErr
			}
		}

		utils.Logger.Warn("database_connect_retry",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxConnectAttempts),
			zap.Error(err),
		)
		time.Sleep(connectRetryDelay)
	}

	return nil, fmt.Errorf("connecting to database after %d attempts: %w", maxConnectAttempts, err)
}

// OpenSQLite opens a file-backed SQLite database. A single connection is
// used so writers queue instead of failing with SQLITE_BUSY.
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	conn, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	utils.Logger.Info("database_connected", zap.String("driver", "sqlite"), zap.String("path", path))
	return conn, nil
}

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&models.UserProfile{},
		&models.ShopItem{},
		&models.Purchase{},
		&models.TaskCompletion{},
		&models.OAuthToken{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DefaultShopItems is the catalog seeded into an empty shop.
func DefaultShopItems() []models.ShopItem {
	return []models.ShopItem{
		{ID: "round-glasses", Name: "Glasses", Description: "Round glasses for your avatar", CoinPrice: 40},
		{ID: "curly-hair", Name: "Curly Hair", Description: "A fresh curly hairstyle", CoinPrice: 50},
		{ID: "cool-shirt", Name: "Cool Shirt", Description: "A shirt with style", CoinPrice: 75},
		{ID: "streak-freeze", Name: "Streak Freeze", Description: "Badge for keeping a long streak", CoinPrice: 120},
		{ID: "golden-crown", Name: "Golden Crown", Description: "Show off on the leaderboard", CoinPrice: 300},
	}
}

// SeedShop inserts the default catalog when the shop is empty and reports
// how many items were created.
func SeedShop(conn *gorm.DB) (int, error) {
	var count int64
	if err := conn.Model(&models.ShopItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting shop items: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	items := DefaultShopItems()
	if err := conn.Create(&items).Error; err != nil {
		return 0, fmt.Errorf("seeding shop items: %w", err)
	}
	utils.Logger.Info("shop_seeded", zap.Int("items", len(items)))
	return len(items), nil
}
