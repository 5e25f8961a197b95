package models

import "github.com/google/uuid"

// LinkedAccount ties a reader to an identity at an external OAuth provider.
type LinkedAccount struct {
	BaseModel
	ReaderID       uuid.UUID `json:"readerId" gorm:"type:uuid;not null;index"`
	Provider       string    `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:idx_linked_provider_subject"`
	ProviderUserID string    `json:"providerUserId" gorm:"type:varchar(255);not null;uniqueIndex:idx_linked_provider_subject"`
	Email          string    `json:"email" gorm:"type:varchar(255)"`
}

func (LinkedAccount) TableName() string {
	return "linked_accounts"
}
