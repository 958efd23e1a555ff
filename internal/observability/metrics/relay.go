package metrics

import (
	"time"

	obserrors "github.com/target/txalert/internal/observability/errors"
	"github.com/target/txalert/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultDelivered           = "delivered"
	ResultSkippedInvalid      = "skipped_invalid"
	ResultSkippedUnrecognized = "skipped_unrecognized"
	ResultError               = "error"
)

// InvocationMetric captures the outcome of one relay invocation.
type InvocationMetric struct {
	EventType string
	Target    string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitInvocation emits the invocation counter and, when a delivery was attempted,
// its duration.
func EmitInvocation(sink statsd.Sink, in InvocationMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"result": in.Result,
	}
	if in.EventType != "" {
		tags["event_type"] = in.EventType
	}
	if in.Target != "" {
		tags["target"] = in.Target
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("relay.invocation", 1, tags)

	if in.Duration > 0 {
		sink.Timing("relay.delivery.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
