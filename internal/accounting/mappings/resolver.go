package mappings

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Resolver maps payment methods to account codes, preferring tenant overrides.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// AccountFor returns the account code a payment made with method settles through.
func (r *Resolver) AccountFor(ctx context.Context, tenantID uuid.UUID, method string) (string, error) {
	m := NormalizeMethod(method)
	if m == "" {
		return "", shared.Invalid("method", "is required")
	}
	if r.repo != nil {
		mapping, err := r.repo.Get(ctx, tenantID, m)
		if err == nil {
			return mapping.AccountCode, nil
		}
		if !errors.Is(err, ErrMappingNotFound) {
			return "", err
		}
	}
	if code, ok := DefaultMethodAccounts[m]; ok {
		return code, nil
	}
	return "", shared.Invalid("method", "unknown payment method %q", method)
}

// Override stores a tenant specific account for method.
func (r *Resolver) Override(ctx context.Context, tenantID uuid.UUID, method, accountCode string) error {
	m := NormalizeMethod(method)
	if m == "" {
		return shared.Invalid("method", "is required")
	}
	if accountCode == "" {
		return shared.Invalid("account_code", "is required")
	}
	return r.repo.Upsert(ctx, tenantID, MethodAccount{Method: m, AccountCode: accountCode})
}
