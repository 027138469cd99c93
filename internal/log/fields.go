package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldOwnerID       = "owner_id"
	FieldTransactionID = "transaction_id"
	FieldDebtID        = "debt_id"
	FieldBudgetID      = "budget_id"
	FieldGoalID        = "goal_id"
	FieldCategoryID    = "category_id"
	FieldAmountCents   = "amount_cents"
	FieldPeriod        = "period"
	FieldEventType     = "event_type"
	FieldEventID       = "event_id"
	FieldVersion       = "version"
	FieldKind          = "kind"
	FieldDebtType      = "debt_type"
	FieldPriority      = "priority"
	FieldStart         = "start"
	FieldEnd           = "end"

	FieldRemainingCents = "remaining_cents"
	FieldSpentCents     = "spent_cents"
	FieldAllocatedCents = "allocated_cents"
	FieldAppliedCents   = "applied_cents"
	FieldExcessCents    = "excess_cents"
	FieldSettled        = "settled"
	FieldExceeded       = "exceeded"
	FieldAchieved       = "achieved"
	FieldReconciled     = "reconciled"
	FieldDeactivated    = "deactivated"
	FieldFailed         = "failed"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentTransaction = "transaction"
	ComponentDebt        = "debt"
	ComponentBudget      = "budget"
	ComponentGoal        = "goal"
	ComponentDashboard   = "dashboard"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentCache       = "cache"
	ComponentAuth        = "auth"
	ComponentBackend     = "backend"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpPay       = "apply_payment"
	OpSettle    = "settle"
	OpCancel    = "cancel"
	OpCorrect   = "correct"
	OpReconcile = "reconcile"
	OpSweep     = "sweep"
	OpContrib   = "contribute"
	OpPublish   = "publish"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithRecord adds the id under the field matching its record kind.
func (f LogFields) WithRecord(kind, id string) LogFields {
	switch kind {
	case "transaction":
		f[FieldTransactionID] = id
	case "debt":
		f[FieldDebtID] = id
	case "budget":
		f[FieldBudgetID] = id
	case "goal":
		f[FieldGoalID] = id
	default:
		f[kind+"_id"] = id
	}
	return f
}

func (f LogFields) WithAmount(cents int64) LogFields {
	f[FieldAmountCents] = cents
	return f
}

// With sets one field. Use the Field constants for key.
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

func (f LogFields) WithHTTPRequest(method, path, userAgent, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldUserAgent] = userAgent
	f[FieldClientIP] = clientIP
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog, keys sorted so output is
// stable.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
