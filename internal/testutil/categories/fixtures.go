package categories

// Fixture is a predefined set of categories for a test scenario.
type Fixture struct {
	Name       string
	Categories []CategoryName
}

// Predefined fixtures for common test scenarios.
var (
	// FixtureMinimal provides one expense and one income category.
	FixtureMinimal = Fixture{
		Name:       "Minimal",
		Categories: []CategoryName{Groceries, Salary},
	}

	// FixtureChartOfAccounts covers every financial component at least once.
	FixtureChartOfAccounts = Fixture{
		Name: "Chart of accounts",
		Categories: []CategoryName{
			Groceries,
			Rent,
			BankingFees,
			Salary,
			Interest,
			Savings,
			Transfers,
			CreditCard,
			OpeningEquity,
		},
	}
)
