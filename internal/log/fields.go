package log

// Common field names for structured logging.
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldAmountCents   = "amount_cents"
	FieldBalanceCents  = "balance_cents"
	FieldInterval      = "interval"
	FieldNextDue       = "next_due"
	FieldPercentUsed   = "percent_used"
	FieldRetryAfter    = "retry_after"
	FieldCount         = "count"
	FieldDuration      = "duration_ms"
	FieldYear          = "year"
	FieldMonth         = "month"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentScheduler = "scheduler"
	ComponentProcessor = "processor"
	ComponentBudget    = "budget"
	ComponentReport    = "report"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentNotify    = "notify"
	ComponentRateLimit = "rate_limit"
	ComponentSheets    = "sheets"
)
