package mycontext

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// CtxTraceContext is a context key for the trace context this (used by mylog)
type CtxTraceContext struct{}

func ContextFromHTTPRequest(r *http.Request) context.Context {
	var trace string

	traceContext := r.Header.Get("X-Cloud-Trace-Context")
	traceParts := strings.Split(traceContext, "/")

	if len(traceParts) > 0 && len(traceParts[0]) > 0 {
		trace = composeTrace(traceParts[0])
	}

	return context.WithValue(r.Context(), CtxTraceContext{}, trace)
}

// WithCorrelationID lets all logging of a consumed message share the trace of the hop that produced it.
func WithCorrelationID(c context.Context, correlationID string) context.Context {
	if correlationID == "" {
		return c
	}
	return context.WithValue(c, CtxTraceContext{}, composeTrace(correlationID))
}

func TraceFromContext(c context.Context) string {
	trace, ok := c.Value(CtxTraceContext{}).(string)
	if !ok {
		return ""
	}
	return trace
}

func composeTrace(traceID string) string {
	return fmt.Sprintf("projects/%s/traces/%s", os.Getenv("GOOGLE_CLOUD_PROJECT"), traceID)
}
