package core

// MemberBalanceLine is one row of the member savings report.
type MemberBalanceLine struct {
	Name       string
	Savings    float64
	Debt       float64
	Penalties  float64
	NetBalance float64
}

// DashboardStats is a compact snapshot of the cooperative's position.
type DashboardStats struct {
	TotalMembers        int
	ActiveMembers       int
	TotalLoans          int
	ActiveLoans         int
	TotalLoaned         float64
	TotalContributions  float64
	TotalInterestEarned float64
	TotalPenalties      float64
	TotalExpenses       float64
	AvailableCash       float64
	DelinquencyRate     float64
}
