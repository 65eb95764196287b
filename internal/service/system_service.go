package service

import (
	"context"

	"github.com/ndewijer/fci-sync/internal/repository"
	"github.com/ndewijer/fci-sync/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	store repository.FundClassStore
}

// NewSystemService creates a new SystemService
func NewSystemService(store repository.FundClassStore) *SystemService {
	return &SystemService{
		store: store,
	}
}

// CheckHealth checks the health of the storage backend
func (s *SystemService) CheckHealth(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *SystemService) CheckVersion() string {
	return version.Version
}
