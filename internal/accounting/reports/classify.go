package reports

// Section buckets an account for statement presentation by its code prefix.
type Section string

const (
	SectionCurrentAssets       Section = "current_assets"
	SectionFixedAssets         Section = "fixed_assets"
	SectionCurrentLiabilities  Section = "current_liabilities"
	SectionLongTermLiabilities Section = "long_term_liabilities"
	SectionEquity              Section = "equity"
	SectionRevenue             Section = "revenue"
	SectionCostOfGoodsSold     Section = "cogs"
	SectionOperatingExpenses   Section = "operating_expenses"
	SectionUnclassified        Section = ""
)

// Classify maps an account code to its statement section.
func Classify(code string) Section {
	if code == "" {
		return SectionUnclassified
	}
	switch code[0] {
	case '1':
		if len(code) >= 2 && code[1] >= '5' && code[1] <= '9' {
			return SectionFixedAssets
		}
		return SectionCurrentAssets
	case '2':
		if len(code) >= 2 && code[1] >= '5' && code[1] <= '9' {
			return SectionLongTermLiabilities
		}
		return SectionCurrentLiabilities
	case '3':
		return SectionEquity
	case '4':
		return SectionRevenue
	case '5':
		return SectionCostOfGoodsSold
	case '6', '7', '8', '9':
		return SectionOperatingExpenses
	default:
		return SectionUnclassified
	}
}

// IsIncomeStatement reports whether the section flows into net income.
func (s Section) IsIncomeStatement() bool {
	switch s {
	case SectionRevenue, SectionCostOfGoodsSold, SectionOperatingExpenses:
		return true
	default:
		return false
	}
}

// cashAccount reports whether the code is a cash or bank account (110x).
func cashAccount(code string) bool {
	return len(code) >= 3 && code[:3] == "110"
}
