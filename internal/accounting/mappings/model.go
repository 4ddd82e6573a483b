package mappings

import (
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Payment methods known to the default mapping.
const (
	MethodCash     = "cash"
	MethodTransfer = "transfer"
	MethodQRIS     = "qris"
	MethodEWallet  = "ewallet"
	MethodCard     = "card"
)

// MethodAccount links a payment method to the cash or bank account it settles through.
type MethodAccount struct {
	Method      string `json:"method"`
	AccountCode string `json:"account_code"`
}

// DefaultMethodAccounts applies when a tenant has no override for a method.
var DefaultMethodAccounts = map[string]string{
	MethodCash:     accounts.CodeCash,
	MethodTransfer: accounts.CodeBank,
	MethodQRIS:     accounts.CodeBank,
	MethodEWallet:  accounts.CodeBank,
	MethodCard:     accounts.CodeBank,
}

// NormalizeMethod lowercases and trims a method name. "e-wallet" and "bank_transfer" are accepted aliases.
func NormalizeMethod(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	switch m {
	case "e-wallet", "e_wallet":
		return MethodEWallet
	case "bank_transfer", "bank-transfer", "bank":
		return MethodTransfer
	default:
		return m
	}
}
