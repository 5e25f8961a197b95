package repository

import (
	"context"

	"github.com/bookclub/backend/internal/models"
	"github.com/google/uuid"
)

type gormLinkedAccounts struct{ s *GormStore }

func (r *gormLinkedAccounts) FindByProvider(ctx context.Context, provider, providerUserID string) (*models.LinkedAccount, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var account models.LinkedAccount
	err := db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *gormLinkedAccounts) Save(ctx context.Context, account *models.LinkedAccount) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	if account.ID == uuid.Nil {
		return translate(db.Create(account).Error)
	}
	return translate(db.Save(account).Error)
}
