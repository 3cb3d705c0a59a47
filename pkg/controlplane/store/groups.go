package store

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// ============================================
// USER CLASS OPERATIONS
// ============================================

func (s *GORMStore) GetGroup(ctx context.Context, name string) (*models.UserClass, error) {
	return firstWhere[models.UserClass](s.db, ctx, models.ErrGroupNotFound, "name = ?", name)
}

func (s *GORMStore) ListGroups(ctx context.Context) ([]*models.UserClass, error) {
	return listWhere[models.UserClass](s.db, ctx, "name", "")
}

func (s *GORMStore) CreateGroup(ctx context.Context, class *models.UserClass) (string, error) {
	if err := class.Validate(); err != nil {
		return "", err
	}
	class.CreatedAt = time.Now()
	return createWithID(s.db, ctx, class, func(c *models.UserClass, id string) { c.ID = id }, class.ID, models.ErrDuplicateGroup)
}

func (s *GORMStore) GetPrincipalGroups(ctx context.Context, namespace, name string) ([]*models.UserClass, error) {
	p, err := s.GetPrincipal(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return principalClasses(s.db.WithContext(ctx), p.ID)
}

func principalClasses(db *gorm.DB, principalID string) ([]*models.UserClass, error) {
	var classes []*models.UserClass
	err := db.
		Joins("JOIN user_class_memberships m ON m.user_class_id = user_classes.id").
		Where("m.principal_id = ?", principalID).
		Order("user_classes.name").
		Find(&classes).Error
	return classes, err
}

func (s *GORMStore) ReconcileGroups(ctx context.Context, namespace, name string, desired []string, opts ReconcileOptions) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Principal
		if err := tx.Where(principalIdentity, namespace, name).First(&p).Error; err != nil {
			return convertNotFoundError(err, models.ErrPrincipalNotFound)
		}

		want, err := resolveClasses(ctx, tx, dedupe(desired), opts, result)
		if err != nil {
			return err
		}

		current, err := principalClasses(tx, p.ID)
		if err != nil {
			return err
		}

		have := make(map[string]bool, len(current))
		var stale []string
		for _, c := range current {
			have[c.ID] = true
			if _, ok := want[c.ID]; !ok {
				stale = append(stale, c.ID)
				result.Removed = append(result.Removed, c.Name)
			}
		}

		if len(stale) > 0 {
			if err := tx.Where("principal_id = ? AND user_class_id IN ?", p.ID, stale).
				Delete(&models.Membership{}).Error; err != nil {
				return err
			}
		}

		for id, c := range want {
			if have[id] {
				continue
			}
			m := &models.Membership{PrincipalID: p.ID, UserClassID: id, CreatedAt: time.Now()}
			if _, err := insertIfAbsent(tx, ctx, m); err != nil {
				return err
			}
			result.Added = append(result.Added, c.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	return result, nil
}

// resolveClasses maps names to user classes keyed by ID. Unknown names are
// created or recorded in result.Unknown depending on opts.
func resolveClasses(ctx context.Context, tx *gorm.DB, names []string, opts ReconcileOptions, result *ReconcileResult) (map[string]*models.UserClass, error) {
	want := make(map[string]*models.UserClass, len(names))
	if len(names) == 0 {
		return want, nil
	}

	var found []*models.UserClass
	if err := tx.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(found))
	for _, c := range found {
		want[c.ID] = c
		known[c.Name] = true
	}

	for _, n := range names {
		if known[n] {
			continue
		}
		if !opts.CreateMissing {
			result.Unknown = append(result.Unknown, n)
			continue
		}
		c := &models.UserClass{ID: newID(), Name: n, Active: true, CreatedAt: time.Now()}
		created, err := insertIfAbsent(tx, ctx, c)
		if err != nil {
			return nil, err
		}
		if !created {
			// lost a race with a concurrent login creating the same class
			if err := tx.Where("name = ?", n).First(c).Error; err != nil {
				return nil, err
			}
		}
		want[c.ID] = c
	}
	return want, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
