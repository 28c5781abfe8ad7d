package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. Values must stay low-cardinality; anything that
// grows with the ledger belongs in span attributes, not profiles.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelActorRole  = "actor_role"
	ProfilingLabelOperation  = "operation"
	// ProfilingLabelKind distinguishes variants of one operation, such
	// as full versus partial equipment returns.
	ProfilingLabelKind = "kind"
)

// maxLabelValueLength caps label values so a runaway route or role
// string cannot blow up Pyroscope's label index.
const maxLabelValueLength = 128

// highCardinalityLabels are keys sanitizeLabels silently drops. Actor
// names, item IDs and borrow reference codes grow with the ledger;
// actor_role stays allowed because it only takes a handful of values.
var highCardinalityLabels = map[string]bool{
	"user_id":        true,
	"request_id":     true,
	"item_id":        true,
	"task_id":        true,
	"reference_code": true,
	"trace_id":       true,
	"span_id":        true,
	"session_id":     true,
}

// WithProfilingLabels runs fn with the given labels applied, so profiles
// collected during the call can be sliced by operation in Pyroscope.
// The labels map is copied before use and may be reused by the caller.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if len(labels) == 0 {
		fn(ctx)
		return
	}

	labelsCopy := make(map[string]string, len(labels))
	maps.Copy(labelsCopy, labels)

	pairs := sanitizeLabels(labelsCopy)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}

	// TagWrapper rides on Go's native pprof labels, so the labels show
	// up in standard pprof output too.
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels turns the map into a deterministic key/value slice:
// keys sorted and snake_cased, high-cardinality keys and empty pairs
// dropped, oversized values truncated.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > maxLabelValueLength {
			value = value[:maxLabelValueLength]
		}
		sanitized := sanitizeLabelKey(key)
		if sanitized == "" {
			continue
		}
		pairs = append(pairs, sanitized, value)
	}
	return pairs
}

// sanitizeLabelKey normalizes a key to snake_case ASCII.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	result := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			result = append(result, c)
		}
	}
	return string(result)
}

// Ledger operation names used as profiling label values. Keep these in
// sync with the application service methods they annotate.
const (
	OperationConsume      = "consume"
	OperationReplenish    = "replenish"
	OperationRollover     = "rollover_period"
	OperationBorrow       = "borrow"
	OperationReturnLoan   = "return_loan"
	OperationCompleteTask = "complete_task"
	OperationSweepOverdue = "sweep_overdue"
)

// LedgerOperationLabels builds the label set for a ledger operation.
// kind may be empty.
func LedgerOperationLabels(operation, kind string) map[string]string {
	labels := make(map[string]string, 2)
	labels[ProfilingLabelOperation] = operation
	if kind != "" {
		labels[ProfilingLabelKind] = kind
	}
	return labels
}
