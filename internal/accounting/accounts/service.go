package accounts

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service is the chart of accounts registry.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the registry.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Seed installs the default chart for tenantID. Existing codes are left untouched.
func (s *Service) Seed(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if tenantID == uuid.Nil {
		return 0, shared.Invalid("tenant_id", "is required")
	}
	n, err := s.repo.InsertDefaults(ctx, tenantID, DefaultChart())
	if err != nil {
		return 0, err
	}
	s.logger.Info("chart of accounts seeded", slog.String("tenant", tenantID.String()), slog.Int("inserted", n))
	return n, nil
}

// Create registers an ad hoc account.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, input CreateInput) (Account, error) {
	if err := internalShared.ValidateStruct(input); err != nil {
		return Account{}, err
	}
	normal := input.NormalBalance
	if normal == "" {
		normal = input.Type.DefaultNormalBalance()
	}
	if input.ParentCode != "" {
		if _, err := s.repo.GetByCode(ctx, tenantID, input.ParentCode); err != nil {
			return Account{}, shared.Invalid("parent_code", "unknown account %s", input.ParentCode)
		}
	}
	return s.repo.Insert(ctx, Account{
		TenantID:      tenantID,
		Code:          strings.TrimSpace(input.Code),
		Name:          strings.TrimSpace(input.Name),
		Type:          input.Type,
		NormalBalance: normal,
		ParentCode:    input.ParentCode,
		IsActive:      true,
	})
}

// Resolve maps every code to an active account or fails with a ValidationError.
func (s *Service) Resolve(ctx context.Context, tenantID uuid.UUID, codes []string) (map[string]Account, error) {
	return s.resolve(ctx, tenantID, codes, false)
}

// ResolveAny is Resolve that also accepts deactivated accounts. Reversals and closing
// entries must be able to unwind balances left on them.
func (s *Service) ResolveAny(ctx context.Context, tenantID uuid.UUID, codes []string) (map[string]Account, error) {
	return s.resolve(ctx, tenantID, codes, true)
}

func (s *Service) resolve(ctx context.Context, tenantID uuid.UUID, codes []string, allowInactive bool) (map[string]Account, error) {
	unique := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		unique = append(unique, code)
	}
	found, err := s.repo.FindByCodes(ctx, tenantID, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Account, len(found))
	for _, a := range found {
		out[a.Code] = a
	}
	sort.Strings(unique)
	for _, code := range unique {
		a, ok := out[code]
		if !ok {
			return nil, shared.Invalid("account_code", "unknown account %s", code)
		}
		if !a.IsActive && !allowInactive {
			return nil, shared.Invalid("account_code", "account %s is inactive", code)
		}
	}
	return out, nil
}

// Get returns an account by code.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, code string) (Account, error) {
	return s.repo.GetByCode(ctx, tenantID, code)
}

// List returns the tenant's chart ordered by code.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return s.repo.List(ctx, tenantID)
}

// Deactivate soft-deletes an account. System accounts stay active.
func (s *Service) Deactivate(ctx context.Context, tenantID uuid.UUID, code string) error {
	account, err := s.repo.GetByCode(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return shared.Invalid("code", "system account %s cannot be deactivated", code)
	}
	return s.repo.SetActive(ctx, tenantID, code, false)
}
