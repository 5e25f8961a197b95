package models

import "time"

// Reader is a person who can authenticate and hold club memberships.
type Reader struct {
	BaseModel
	Username     string     `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName    string     `json:"firstName" gorm:"type:varchar(100)"`
	LastName     string     `json:"lastName" gorm:"type:varchar(100)"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"`
	JoinedAt     time.Time  `json:"joinedAt" gorm:"not null"`
	DepartedAt   *time.Time `json:"departedAt,omitempty"`
}

func (Reader) TableName() string {
	return "readers"
}

// IsActive reports whether the reader may still authenticate and act.
func (r *Reader) IsActive() bool {
	return r != nil && r.DepartedAt == nil
}

func (r *Reader) DisplayName() string {
	switch {
	case r.FirstName != "" && r.LastName != "":
		return r.FirstName + " " + r.LastName
	case r.FirstName != "":
		return r.FirstName
	default:
		return r.Username
	}
}
