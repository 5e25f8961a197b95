package database

import (
	"fmt"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Reader{},
		&models.BookClub{},
		&models.Membership{},
		&models.MembershipRequest{},
		&models.Notification{},
		&models.NotificationView{},
		&models.RefreshToken{},
		&models.LinkedAccount{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
	}
}

// The partial indexes hold the membership invariants in storage. Both
// postgres and sqlite accept this syntax.
var invariantIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_active_reader
		ON memberships (club_id, reader_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_active_creator
		ON memberships (club_id) WHERE status = 'active' AND is_creator`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_membership_requests_open
		ON membership_requests (club_id, requester_id) WHERE status = 'open'`,
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	for _, stmt := range invariantIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create invariant index: %w", err)
		}
	}

	return nil
}
