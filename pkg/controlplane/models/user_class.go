package models

import (
	"fmt"
	"time"
)

// UserClass is a named group of principals used for authorization.
type UserClass struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for UserClass.
func (UserClass) TableName() string {
	return "user_classes"
}

// Validate checks if the user class has a valid name.
func (c *UserClass) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("user class name is required")
	}
	return nil
}

// Membership links a principal to a user class.
type Membership struct {
	PrincipalID string    `gorm:"primaryKey;size:36" json:"principal_id"`
	UserClassID string    `gorm:"primaryKey;size:36;index" json:"user_class_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Membership.
func (Membership) TableName() string {
	return "user_class_memberships"
}
