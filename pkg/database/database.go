package database

import (
	"context"
	"fmt"
	"time"

	"quest_engine_backend/internal/config"
	"quest_engine_backend/internal/model"
	applog "quest_engine_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the driver-specific connection string.
func DSN(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dialector, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	applog.Log.Info("Database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate creates the quest tables. Attempt and ledger rows cascade with their parents.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Quest{},
		&model.QuestAttempt{},
		&model.RewardLedgerEntry{},
	); err != nil {
		return err
	}
	applog.Log.Info("Database migration completed")
	return nil
}

// QuestCatalog is the write side of the quest repository used for seeding.
type QuestCatalog interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, q *model.Quest) error
}

// SeedQuests inserts the built-in catalog into an empty quests table. Stored
// copies get fresh ids so they never collide with the synthetic seed- ids.
func SeedQuests(ctx context.Context, catalog QuestCatalog) (int, error) {
	count, err := catalog.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	seeds := model.SeedQuests()
	for i := range seeds {
		seeds[i].ID = ""
		if err := catalog.Create(ctx, &seeds[i]); err != nil {
			return i, fmt.Errorf("seed quest %q: %w", seeds[i].Title, err)
		}
	}
	applog.Log.Info("Seed quests inserted", zap.Int("count", len(seeds)))
	return len(seeds), nil
}
