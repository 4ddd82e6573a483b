package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	acctshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestPaginationBounds(t *testing.T) {
	p := NewPagination(0, 0)
	require.Equal(t, 1, p.Page)
	require.Equal(t, DefaultPerPage, p.PerPage)

	p = NewPagination(3, 1000)
	require.Equal(t, MaxPerPage, p.PerPage)
	require.Equal(t, 2*MaxPerPage, p.Offset())
	require.Equal(t, MaxPerPage+1, p.Limit())
}

func TestPaginateDetectsNextPage(t *testing.T) {
	p := NewPagination(1, 2)
	rows := Paginate(&p, []int{1, 2, 3})
	require.Equal(t, []int{1, 2}, rows)
	require.True(t, p.HasNext)

	rows = Paginate(&p, []int{4})
	require.Equal(t, []int{4}, rows)
	require.False(t, p.HasNext)
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	type payment struct {
		PaymentID string `json:"payment_id" validate:"required"`
		Amount    int64  `json:"amount" validate:"gt=0"`
	}

	err := ValidateStruct(payment{Amount: 10})
	var verr *acctshared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "payment_id", verr.Field)
	require.Equal(t, "is required", verr.Message)

	err = ValidateStruct(payment{PaymentID: "P-1"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "amount", verr.Field)
	require.Equal(t, "must satisfy gt=0", verr.Message)

	require.NoError(t, ValidateStruct(payment{PaymentID: "P-1", Amount: 1}))
}

func TestPgErrorMatching(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_journal_trace"})
	require.True(t, IsUniqueViolation(unique, ""))
	require.True(t, IsUniqueViolation(unique, "uq_journal_trace"))
	require.False(t, IsUniqueViolation(unique, "uq_other"))
	require.False(t, IsExclusionViolation(unique, ""))

	overlap := &pgconn.PgError{Code: "23P01", ConstraintName: "ex_fiscal_periods_overlap"}
	require.True(t, IsExclusionViolation(overlap, "ex_fiscal_periods_overlap"))
	require.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsForeignKeyViolation(errors.New("boom")))
}
