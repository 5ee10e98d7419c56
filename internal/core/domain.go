package core

import (
	"errors"
	"strings"
)

// Sentinel errors for the lifecycle operations. They are always returned
// before any state change, so a failed call leaves the book untouched.
var (
	ErrInvalidLoanTerms    = errors.New("invalid loan terms")
	ErrMemberNotFound      = errors.New("member not found")
	ErrInvalidLoanState    = errors.New("operation not permitted in current loan state")
	ErrExcessivePayment    = errors.New("payment exceeds remaining principal")
	ErrInvalidBackupFormat = errors.New("invalid backup format")
)

// MemberStatus enumerates the member lifecycle. Retiring a member is a
// status flip to inactive; deletion removes the record entirely.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberInactive  MemberStatus = "inactive"
	MemberSuspended MemberStatus = "suspended"
)

// LoanStatus enumerates the loan state machine:
// pending_retention -> active -> {paid, refinanced}. Deletion is a hard
// removal, not a status.
type LoanStatus string

const (
	LoanPendingRetention LoanStatus = "pending_retention"
	LoanActive           LoanStatus = "active"
	LoanPaid             LoanStatus = "paid"
	LoanRefinanced       LoanStatus = "refinanced"
	LoanCancelled        LoanStatus = "cancelled"
)

// InstallmentStatus is the per-schedule-row status.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

// ContributionStatus enumerates contribution payment states.
type ContributionStatus string

const (
	ContributionPending ContributionStatus = "pending"
	ContributionPaid    ContributionStatus = "paid"
	ContributionLate    ContributionStatus = "late"
)

// TransactionType enumerates the cash ledger entry kinds.
type TransactionType string

const (
	TxContribution     TransactionType = "contribution"
	TxLoanPayment      TransactionType = "loan_payment"
	TxPenalty          TransactionType = "penalty"
	TxRetention        TransactionType = "retention"
	TxLoanApproval     TransactionType = "loan_approval"
	TxLoanCancel       TransactionType = "loan_cancel"
	TxExpense          TransactionType = "expense"
	TxRefund           TransactionType = "refund"
	TxManualAdjustment TransactionType = "manual_adjustment"
)

// Config holds the cooperative's persisted financial settings. It lives in
// the "config" collection and is distinct from the process environment
// configuration.
type Config struct {
	MonthlyShareAmount   float64 `json:"monthlyShareAmount"`
	MonthlyExpenseAmount float64 `json:"monthlyExpenseAmount"`
	PenaltyAmount        float64 `json:"penaltyAmount"`
	PenaltyDayThreshold  int     `json:"penaltyDayThreshold"`
	MonthlyInterestRate  float64 `json:"monthlyInterestRate"`
	TransferFee          float64 `json:"transferFee"`
	RetentionRate        float64 `json:"retentionRate"`
	CurrencySymbol       string  `json:"currencySymbol"`
	CurrencyCode         string  `json:"currencyCode"`
	OpeningBalance       float64 `json:"openingBalance"`
}

// DefaultConfig mirrors the cooperative's standing terms: $25 monthly share,
// $5 admin expense, $5 late penalty after day 3, 1% monthly interest, $0.41
// transfer fee and 1% retention.
func DefaultConfig() Config {
	return Config{
		MonthlyShareAmount:   25,
		MonthlyExpenseAmount: 5,
		PenaltyAmount:        5,
		PenaltyDayThreshold:  3,
		MonthlyInterestRate:  1,
		TransferFee:          0.41,
		RetentionRate:        1,
		CurrencySymbol:       "$",
		CurrencyCode:         "USD",
		OpeningBalance:       0,
	}
}

// Member is a cooperative member. TotalContributions and CurrentBalance are
// informational caches maintained by contribution operations; they are not
// derived from the ledger.
type Member struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Phone              string       `json:"phone"`
	JoinDate           string       `json:"joinDate"`
	Status             MemberStatus `json:"status"`
	TotalContributions float64      `json:"totalContributions"`
	CurrentBalance     float64      `json:"currentBalance"`
	Notes              string       `json:"notes,omitempty"`
	CreatedAt          string       `json:"createdAt"`
	UpdatedAt          string       `json:"updatedAt"`
}

// AmortizationEntry is one row of a loan's installment schedule. The row's
// TransferFee repeats the flat fee even though the quote total adds it only
// once; consumers must use the quote totals, not the schedule sum.
type AmortizationEntry struct {
	InstallmentNumber int               `json:"installmentNumber"`
	DueDate           string            `json:"dueDate"`
	Principal         float64           `json:"principal"`
	Interest          float64           `json:"interest"`
	TransferFee       float64           `json:"transferFee"`
	Payment           float64           `json:"payment"`
	Balance           float64           `json:"balance"`
	Status            InstallmentStatus `json:"status"`
	PaidDate          string            `json:"paidDate,omitempty"`
}

// Loan is a disbursed or pending loan. The derived terms (monthly payment,
// totals, schedule) are frozen at creation; only the progress scalars and
// schedule row statuses move afterwards.
type Loan struct {
	ID                  string              `json:"id"`
	MemberID            string              `json:"memberId"`
	MemberName          string              `json:"memberName"`
	Amount              float64             `json:"amount"`
	MonthlyInterestRate float64             `json:"monthlyInterestRate"`
	TermMonths          int                 `json:"termMonths"`
	MonthlyPayment      float64             `json:"monthlyPayment"`
	TransferFee         float64             `json:"transferFee"`
	TotalInterest       float64             `json:"totalInterest"`
	TotalAmount         float64             `json:"totalAmount"`
	RetentionAmount     float64             `json:"retentionAmount"`
	RetentionPaid       bool                `json:"retentionPaid"`
	PaidPrincipal       float64             `json:"paidPrincipal"`
	RemainingPrincipal  float64             `json:"remainingPrincipal"`
	PaidInstallments    int                 `json:"paidInstallments"`
	TotalInstallments   int                 `json:"totalInstallments"`
	StartDate           string              `json:"startDate"`
	EndDate             string              `json:"endDate"`
	Status              LoanStatus          `json:"status"`
	RefinancedFromID    string              `json:"refinancedFromId,omitempty"`
	Notes               string              `json:"notes,omitempty"`
	Schedule            []AmortizationEntry `json:"schedule"`
	CreatedAt           string              `json:"createdAt"`
}

// Transaction is an immutable cash ledger entry. Positive amounts are cash
// in, negative are cash out. Corrections append offsetting entries; prior
// entries are never mutated.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	ReferenceID string          `json:"referenceId,omitempty"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"createdAt"`
}

// Contribution is a member's monthly contribution record.
type Contribution struct {
	ID            string             `json:"id"`
	MemberID      string             `json:"memberId"`
	Month         string             `json:"month"` // "2024-01"
	ShareAmount   float64            `json:"shareAmount"`
	ExpenseAmount float64            `json:"expenseAmount"`
	PenaltyAmount float64            `json:"penaltyAmount"`
	TotalAmount   float64            `json:"totalAmount"`
	Status        ContributionStatus `json:"status"`
	DueDate       string             `json:"dueDate"`
	PaidDate      string             `json:"paidDate,omitempty"`
	CreatedAt     string             `json:"createdAt"`
}

// Expense is an administrative expense.
type Expense struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

// Refund is a payout to a withdrawing member.
type Refund struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"memberId"`
	MemberName  string  `json:"memberName"`
	Reason      string  `json:"reason"`
	Amount      float64 `json:"amount"`
	DepositDate string  `json:"depositDate"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ActivityLog records one audited mutation of the book.
type ActivityLog struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Validate checks a member's required fields.
func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("empty member name")
	}
	return nil
}

// Validate checks an expense's required fields.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return errors.New("empty expense description")
	}
	if e.Amount <= 0 {
		return errors.New("expense amount must be positive")
	}
	return nil
}
