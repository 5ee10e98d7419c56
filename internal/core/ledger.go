package core

// cashTypes are the transaction types whose signed amounts flow into the
// available cash figure. Contribution and penalty income enters through the
// contribution records instead of their ledger entries, so those two types
// are deliberately absent here.
var cashTypes = [...]TransactionType{
	TxLoanPayment,
	TxRetention,
	TxLoanApproval,
	TxLoanCancel,
	TxExpense,
	TxRefund,
	TxManualAdjustment,
}

// AvailableCash derives the cooperative's cash position as a pure function
// of the transaction log, the paid contributions and the carried-forward
// opening balance. Calling it twice over the same snapshot yields the same
// value bit for bit.
func AvailableCash(transactions []Transaction, contributions []Contribution, openingBalance float64) float64 {
	total := openingBalance

	for _, c := range contributions {
		if c.Status != ContributionPaid {
			continue
		}
		total += c.ShareAmount + c.ExpenseAmount + c.PenaltyAmount
	}

	for _, t := range transactions {
		for _, kind := range cashTypes {
			if t.Type == kind {
				total += t.Amount
				break
			}
		}
	}

	return total
}

// TotalByType sums the signed amounts of all transactions of one type.
func TotalByType(transactions []Transaction, kind TransactionType) float64 {
	var total float64
	for _, t := range transactions {
		if t.Type == kind {
			total += t.Amount
		}
	}
	return total
}

// LoanTransactions returns the ledger entries referencing a loan.
func LoanTransactions(transactions []Transaction, loanID string) []Transaction {
	var out []Transaction
	for _, t := range transactions {
		if t.ReferenceID == loanID {
			out = append(out, t)
		}
	}
	return out
}

// MemberSavings sums a member's paid share and expense contributions.
func MemberSavings(contributions []Contribution, memberID string) float64 {
	var total float64
	for _, c := range contributions {
		if c.MemberID == memberID && c.Status == ContributionPaid {
			total += c.ShareAmount + c.ExpenseAmount
		}
	}
	return total
}

// MemberPenalties sums the penalties a member has paid with contributions.
func MemberPenalties(contributions []Contribution, memberID string) float64 {
	var total float64
	for _, c := range contributions {
		if c.MemberID == memberID && c.Status == ContributionPaid {
			total += c.PenaltyAmount
		}
	}
	return total
}

// MemberDebt sums the remaining principal of a member's active loans.
func MemberDebt(loans []Loan, memberID string) float64 {
	var total float64
	for _, l := range loans {
		if l.MemberID == memberID && l.Status == LoanActive {
			total += l.RemainingPrincipal
		}
	}
	return total
}
