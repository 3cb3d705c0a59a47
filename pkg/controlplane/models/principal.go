package models

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Principal is an authenticatable identity. It is unique per
// (Namespace, Name) and never deleted by the login pipeline.
//
// PasswordHash holds the hex SHA-1 digest used by database authentication.
// Principals created by other strategies carry no local password.
type Principal struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Namespace    string     `gorm:"not null;size:64;uniqueIndex:idx_principal_identity" json:"namespace"`
	Name         string     `gorm:"not null;size:255;uniqueIndex:idx_principal_identity" json:"name"`
	FirstName    string     `gorm:"size:255" json:"first_name,omitempty"`
	LastName     string     `gorm:"size:255" json:"last_name,omitempty"`
	Email        string     `gorm:"size:255" json:"email,omitempty"`
	PasswordHash string     `gorm:"size:40" json:"-"`
	AuthAllowed  bool       `gorm:"not null;default:false" json:"auth_allowed"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for Principal.
func (Principal) TableName() string {
	return "principals"
}

// Qualified returns "namespace:name".
func (p *Principal) Qualified() string {
	return p.Namespace + ":" + p.Name
}

// Details returns the display attributes of the principal.
func (p *Principal) Details() Details {
	return Details{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
}

// SetPassword stores the SHA-1 digest of password.
func (p *Principal) SetPassword(password string) {
	p.PasswordHash = HashPassword(password)
}

// CheckPassword reports whether password matches the stored digest.
// A principal without a stored digest never matches.
func (p *Principal) CheckPassword(password string) bool {
	if p.PasswordHash == "" {
		return false
	}
	want := strings.ToLower(p.PasswordHash)
	got := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// Validate checks the identity fields.
func (p *Principal) Validate() error {
	if p.Namespace == "" {
		return fmt.Errorf("principal namespace is required")
	}
	if p.Name == "" {
		return fmt.Errorf("principal name is required")
	}
	return nil
}

// HashPassword returns the lower-case hex SHA-1 digest of password.
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Details are the profile fields synchronised from authentication backends.
type Details struct {
	FirstName string
	LastName  string
	Email     string
}
