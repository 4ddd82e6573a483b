package accounts

// Well known account codes of the default chart.
const (
	CodeCash                    = "1101"
	CodeBank                    = "1102"
	CodeAccountsReceivable      = "1201"
	CodeInventory               = "1301"
	CodePrepaidExpenses         = "1401"
	CodeEquipment               = "1501"
	CodeAccumulatedDepreciation = "1502"
	CodeAccountsPayable         = "2101"
	CodeAccruedLiabilities      = "2102"
	CodeLongTermLoans           = "2501"
	CodeOwnerCapital            = "3101"
	CodeRetainedEarnings        = "3201"
	CodeOwnerDrawings           = "3301"
	CodeSalesRevenue            = "4101"
	CodeSalesDiscounts          = "4102"
	CodeOtherIncome             = "4201"
	CodeCostOfGoodsSold         = "5101"
	CodeSalaries                = "6101"
	CodeRent                    = "6102"
	CodeUtilities               = "6103"
	CodeGeneralExpenses         = "6104"
	CodeDepreciationExpense     = "6105"
	CodeInventoryShrinkage      = "6901"
)

type seedAccount struct {
	code   string
	name   string
	typ    AccountType
	normal NormalBalance
	parent string
}

var defaultChart = []seedAccount{
	{CodeCash, "Cash", AccountTypeAsset, "", ""},
	{CodeBank, "Bank", AccountTypeAsset, "", ""},
	{CodeAccountsReceivable, "Accounts Receivable", AccountTypeAsset, "", ""},
	{CodeInventory, "Inventory", AccountTypeAsset, "", ""},
	{CodePrepaidExpenses, "Prepaid Expenses", AccountTypeAsset, "", ""},
	{CodeEquipment, "Equipment", AccountTypeAsset, "", ""},
	{CodeAccumulatedDepreciation, "Accumulated Depreciation", AccountTypeAsset, NormalCredit, CodeEquipment},
	{CodeAccountsPayable, "Accounts Payable", AccountTypeLiability, "", ""},
	{CodeAccruedLiabilities, "Accrued Liabilities", AccountTypeLiability, "", ""},
	{CodeLongTermLoans, "Long-term Loans", AccountTypeLiability, "", ""},
	{CodeOwnerCapital, "Owner Capital", AccountTypeEquity, "", ""},
	{CodeRetainedEarnings, "Retained Earnings", AccountTypeEquity, "", ""},
	{CodeOwnerDrawings, "Owner Drawings", AccountTypeEquity, NormalDebit, CodeOwnerCapital},
	{CodeSalesRevenue, "Sales Revenue", AccountTypeIncome, "", ""},
	{CodeSalesDiscounts, "Sales Discounts", AccountTypeIncome, NormalDebit, CodeSalesRevenue},
	{CodeOtherIncome, "Other Income", AccountTypeIncome, "", ""},
	{CodeCostOfGoodsSold, "Cost of Goods Sold", AccountTypeExpense, "", ""},
	{CodeSalaries, "Salaries", AccountTypeExpense, "", ""},
	{CodeRent, "Rent", AccountTypeExpense, "", ""},
	{CodeUtilities, "Utilities", AccountTypeExpense, "", ""},
	{CodeGeneralExpenses, "General Expenses", AccountTypeExpense, "", ""},
	{CodeDepreciationExpense, "Depreciation Expense", AccountTypeExpense, "", ""},
	{CodeInventoryShrinkage, "Inventory Shrinkage", AccountTypeExpense, "", ""},
}

// DefaultChart returns the chart every tenant is seeded with.
func DefaultChart() []Account {
	out := make([]Account, 0, len(defaultChart))
	for _, s := range defaultChart {
		normal := s.normal
		if normal == "" {
			normal = s.typ.DefaultNormalBalance()
		}
		out = append(out, Account{
			Code:          s.code,
			Name:          s.name,
			Type:          s.typ,
			NormalBalance: normal,
			ParentCode:    s.parent,
			IsActive:      true,
			IsSystem:      true,
		})
	}
	return out
}
