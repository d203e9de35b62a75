package rbac

import (
	"context"
	"sort"
	"strings"

	"github.com/odyssey-erp/compensation/internal/shared"
)

// Service resolves effective permissions from a static role policy.
type Service struct {
	policy Policy
}

// NewService constructs a Service; a nil policy uses DefaultPolicy.
func NewService(policy Policy) *Service {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Service{policy: policy}
}

// EffectivePermissions returns the sorted permissions granted to p.
func (s *Service) EffectivePermissions(ctx context.Context, p shared.Principal) ([]string, error) {
	granted := normalizePermissions(s.policy[strings.ToLower(p.Role)])
	sort.Strings(granted)
	return granted, nil
}
