package models

import "time"

// SSOMapping binds a federation subject identifier to the local username
// synthesised for it on first login.
type SSOMapping struct {
	SubjectID   string    `gorm:"primaryKey;size:255" json:"subject_id"`
	Namespace   string    `gorm:"not null;size:64;uniqueIndex:idx_sso_username" json:"namespace"`
	Username    string    `gorm:"not null;size:255;uniqueIndex:idx_sso_username" json:"username"`
	HomeOrg     string    `gorm:"size:255" json:"home_org,omitempty"`
	Affiliation string    `gorm:"size:255" json:"affiliation,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for SSOMapping.
func (SSOMapping) TableName() string {
	return "sso_mappings"
}
