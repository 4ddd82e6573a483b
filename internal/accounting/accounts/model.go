package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance is the side on which an account increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// DefaultNormalBalance returns the normal balance implied by the type.
func (t AccountType) DefaultNormalBalance() NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalDebit
	case AccountTypeLiability, AccountTypeEquity, AccountTypeIncome:
		return NormalCredit
	default:
		return NormalDebit
	}
}

// Valid reports whether n is DEBIT or CREDIT.
func (n NormalBalance) Valid() bool {
	return n == NormalDebit || n == NormalCredit
}

// Signed returns the balance of debit and credit totals seen from side n.
func (n NormalBalance) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if n == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// Account models a chart of accounts node.
type Account struct {
	ID            int64
	TenantID      uuid.UUID
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	ParentCode    string
	IsActive      bool
	IsSystem      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsContra reports whether the account carries the opposite of its type's normal balance.
func (a Account) IsContra() bool {
	return a.NormalBalance != a.Type.DefaultNormalBalance()
}

// CreateInput captures an ad hoc account definition.
type CreateInput struct {
	Code          string        `json:"code" validate:"required,numeric,min=3,max=10"`
	Name          string        `json:"name" validate:"required,max=120"`
	Type          AccountType   `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	NormalBalance NormalBalance `json:"normal_balance" validate:"omitempty,oneof=DEBIT CREDIT"`
	ParentCode    string        `json:"parent_code" validate:"omitempty,numeric"`
}
