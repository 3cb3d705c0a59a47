package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// firstWhere loads the first T matching query/args, translating
// gorm.ErrRecordNotFound into notFoundErr.
//
// Example:
//
//	p, err := firstWhere[models.Principal](db, ctx, models.ErrPrincipalNotFound, "namespace = ? AND name = ?", ns, name)
func firstWhere[T any](db *gorm.DB, ctx context.Context, notFoundErr error, query string, args ...any) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(query, args...).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// listWhere returns every T matching query/args ordered by order. An empty
// query lists the whole table.
func listWhere[T any](db *gorm.DB, ctx context.Context, order string, query string, args ...any) ([]*T, error) {
	var results []*T
	q := db.WithContext(ctx)
	if query != "" {
		q = q.Where(query, args...)
	}
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// createWithID assigns a UUID when currentID is empty and inserts entity.
// Unique constraint violations are reported as dupErr.
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, idSetter func(*T, string), currentID string, dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.New().String()
		idSetter(entity, id)
	}
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", dupErr
		}
		return "", err
	}
	return id, nil
}

// insertIfAbsent inserts entity unless a row with a conflicting unique key
// already exists. It reports whether a row was written. The check and the
// insert are a single statement, so concurrent callers cannot both win.
func insertIfAbsent[T any](db *gorm.DB, ctx context.Context, entity *T) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entity)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
