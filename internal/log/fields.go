package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldCacheKey    = "cache_key"
	FieldMutationID  = "mutation_id"
	FieldMutationOp  = "mutation_op"
	FieldSyncState   = "sync_state"
	FieldQueueLength = "queue_length"
	FieldSource      = "source"
	FieldEventKind   = "event_kind"
	FieldRecordID    = "record_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentDashboard  = "dashboard"
	ComponentMutations  = "mutations"
	ComponentReconciler = "reconciler"
	ComponentMonitor    = "monitor"
	ComponentCache      = "cache"
	ComponentQueue      = "offline_queue"
	ComponentStorage    = "storage"
	ComponentRecords    = "records"
	ComponentNotify     = "notify"
	ComponentAMQP       = "amqp"
	ComponentNATS       = "nats"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpRead     = "read"
	OpWrite    = "write"
	OpRefresh  = "refresh"
	OpReplay   = "replay"
	OpEnqueue  = "enqueue"
	OpSync     = "sync"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpMigrate  = "migrate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the user id field
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithMutation adds queued mutation fields
func (f LogFields) WithMutation(id, op string) LogFields {
	f[FieldMutationID] = id
	f[FieldMutationOp] = op
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
