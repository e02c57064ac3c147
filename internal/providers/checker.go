package providers

import (
	"context"

	"github.com/botcrew/orchestrator/internal/store"
)

// CredentialChecker is the live implementation of agents.CredentialChecker,
// consulting the secrets table on every call. Agent creation is rare
// enough that this is not worth caching.
type CredentialChecker struct {
	store *store.Store
}

func NewCredentialChecker(s *store.Store) *CredentialChecker {
	return &CredentialChecker{store: s}
}

func (c *CredentialChecker) Configured(provider string) bool {
	secrets, err := c.store.AllSecrets(context.Background())
	if err != nil {
		return false
	}
	return Configured(provider, secrets)
}
