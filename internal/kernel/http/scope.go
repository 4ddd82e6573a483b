package kernelhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/kernel"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Request headers identifying the caller. Authentication happens upstream of this service.
const (
	HeaderTenant = "X-Tenant-ID"
	HeaderActor  = "X-Actor"
	HeaderRole   = "X-Actor-Role"
)

type scopeKey struct{}

type scope struct {
	tenant uuid.UUID
	admin  bool
}

func tenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderTenant)))
		if err != nil || tenant == uuid.Nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", HeaderTenant+" header must carry a tenant uuid")
			return
		}
		ctx := context.WithValue(r.Context(), scopeKey{}, scope{
			tenant: tenant,
			admin:  strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), "admin"),
		})
		if actor := strings.TrimSpace(r.Header.Get(HeaderActor)); actor != "" {
			ctx = kernel.WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}
