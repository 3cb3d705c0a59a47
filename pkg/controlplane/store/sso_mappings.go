package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// GetSSOMapping returns the mapping for a federation subject.
func (s *GORMStore) GetSSOMapping(ctx context.Context, subjectID string) (*models.SSOMapping, error) {
	return firstWhere[models.SSOMapping](s.db, ctx, models.ErrMappingNotFound, "subject_id = ?", subjectID)
}

// CreateSSOIdentity writes the mapping and its principal in one transaction.
func (s *GORMStore) CreateSSOIdentity(ctx context.Context, m *models.SSOMapping, p *models.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now()
	m.CreatedAt = now
	p.CreatedAt = now
	if p.ID == "" {
		p.ID = newID()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Create(p).Error
	})
	if isUniqueConstraintError(err) {
		return models.ErrDuplicateMapping
	}
	return err
}
