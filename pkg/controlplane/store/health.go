package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/marmos91/labgate/pkg/controlplane/models"
)

// ErrSchemaMissing is returned by Healthcheck when the database answers but
// the principal tables are gone.
var ErrSchemaMissing = errors.New("control plane schema missing")

// Healthcheck pings the database and checks that the principal table
// exists. Logins cannot succeed without either.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping control plane database: %w", err)
	}
	if !s.db.WithContext(ctx).Migrator().HasTable(&models.Principal{}) {
		return ErrSchemaMissing
	}
	return nil
}

// Close releases the connection pool.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}

func newID() string {
	return uuid.New().String()
}

var _ Store = (*GORMStore)(nil)
