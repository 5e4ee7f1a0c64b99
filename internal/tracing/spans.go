package tracing

// Span attribute keys.
const (
	AttrProjectID   = "project.id"
	AttrDiagramID   = "diagram.id"
	AttrDiagramType = "diagram.type"
	AttrTabID       = "tab.id"

	AttrRemoteOp      = "remote.op"
	AttrRemoteAttempt = "remote.attempt"
	AttrCacheHit      = "cache.hit"

	AttrActionType   = "action.type"
	AttrActionID     = "action.id"
	AttrActionSource = "action.source"

	AttrHTTPMethod = "http.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"

	AttrErrorCategory  = "error.category"
	AttrErrorRetryable = "error.retryable"
)

// Span name prefixes.
const (
	SpanPrefixSync   = "sync."
	SpanPrefixRemote = "remote."
	SpanPrefixHTTP   = "http."
	SpanPrefixAction = "workspace."
)

// Event names for span events.
const (
	EventRetryScheduled   = "retry.scheduled"
	EventCacheInvalidated = "cache.invalidated"
	EventErrorOccurred    = "error.occurred"
)
