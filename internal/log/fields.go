package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldLoanID      = "loan_id"
	FieldMemberID    = "member_id"
	FieldAmount      = "amount"
	FieldInstallment = "installment"
	FieldTxType      = "transaction_type"
	FieldCollection  = "collection"
	FieldStatus      = "status"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentLoan         = "loan"
	ComponentContribution = "contribution"
	ComponentExpense      = "expense"
	ComponentMember       = "member"
	ComponentReport       = "report"
	ComponentBackup       = "backup"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentCache        = "cache"
)

// Operations defines standard operation names
const (
	OpQuote     = "quote"
	OpApprove   = "approve"
	OpRetention = "pay_retention"
	OpPay       = "pay_installment"
	OpPrepay    = "prepay"
	OpRefinance = "refinance"
	OpDelete    = "delete"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpFlush     = "flush"
	OpExport    = "export"
	OpImport    = "import"
	OpClosing   = "annual_closing"
)
