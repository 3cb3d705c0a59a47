package store

import (
	"context"
	"time"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// ============================================
// PRINCIPAL OPERATIONS
// ============================================

const principalIdentity = "namespace = ? AND name = ?"

func (s *GORMStore) GetPrincipal(ctx context.Context, namespace, name string) (*models.Principal, error) {
	return firstWhere[models.Principal](s.db, ctx, models.ErrPrincipalNotFound, principalIdentity, namespace, name)
}

func (s *GORMStore) ListPrincipals(ctx context.Context, namespace string) ([]*models.Principal, error) {
	return listWhere[models.Principal](s.db, ctx, "name", "namespace = ?", namespace)
}

func (s *GORMStore) CreatePrincipal(ctx context.Context, p *models.Principal) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	p.CreatedAt = time.Now()
	return createWithID(s.db, ctx, p, func(p *models.Principal, id string) { p.ID = id }, p.ID, models.ErrDuplicatePrincipal)
}

func (s *GORMStore) EnsurePrincipal(ctx context.Context, p *models.Principal) (*models.Principal, bool, error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}

	candidate := *p
	if candidate.ID == "" {
		candidate.ID = newID()
	}
	candidate.CreatedAt = time.Now()

	created, err := insertIfAbsent(s.db, ctx, &candidate)
	if err != nil {
		return nil, false, err
	}
	if created {
		return &candidate, true, nil
	}

	existing, err := s.GetPrincipal(ctx, p.Namespace, p.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *GORMStore) UpdatePrincipalDetails(ctx context.Context, namespace, name string, d models.Details) (bool, error) {
	existing, err := s.GetPrincipal(ctx, namespace, name)
	if err != nil {
		return false, err
	}
	if existing.Details() == d {
		return false, nil
	}

	err = s.db.WithContext(ctx).
		Model(existing).
		Updates(map[string]any{
			"first_name": d.FirstName,
			"last_name":  d.LastName,
			"email":      d.Email,
		}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, namespace, name string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Principal{}).
		Where(principalIdentity, namespace, name).
		Update("last_login", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrPrincipalNotFound
	}
	return nil
}

func (s *GORMStore) UsernameExists(ctx context.Context, namespace, name string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Principal{}).
		Where(principalIdentity, namespace, name).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.SSOMapping{}).
		Where("namespace = ? AND username = ?", namespace, name).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
