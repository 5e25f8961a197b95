package models

import "time"

type BookClub struct {
	BaseModel
	Name        string     `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Public      bool       `json:"public" gorm:"not null"`
	DisbandedAt *time.Time `json:"disbandedAt,omitempty"`
}

func (BookClub) TableName() string {
	return "book_clubs"
}

// IsDisbanded is terminal: a disbanded club accepts no membership mutations.
func (c *BookClub) IsDisbanded() bool {
	return c.DisbandedAt != nil
}
