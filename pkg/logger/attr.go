package logger

import (
	"log/slog"
	"strconv"
)

// maxEndpointLen caps logged push endpoints; they are long opaque URLs.
const maxEndpointLen = 64

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Endpoint records a push endpoint under the key "endpoint", truncated.
func Endpoint(endpoint string) slog.Attr {
	if endpoint == "" {
		return slog.Attr{}
	}
	if len(endpoint) > maxEndpointLen {
		endpoint = endpoint[:maxEndpointLen] + "..."
	}
	return slog.String("endpoint", endpoint)
}

// DeviceLabel records the human-readable device label under the key "device_label".
func DeviceLabel(label string) slog.Attr {
	return slog.String("device_label", label)
}

// NotificationID records a notification identifier under the key "notification_id".
func NotificationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("notification_id", id)
}

// State records a state machine state under the key "state".
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// Sequence records a client mutation sequence number under the key "seq".
func Sequence(seq uint64) slog.Attr {
	return slog.Uint64("seq", seq)
}

// Count records a generic counter under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Operation records the operation name under the key "op".
func Operation(name string) slog.Attr {
	return slog.String("op", name)
}
