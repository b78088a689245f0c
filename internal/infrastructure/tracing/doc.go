/*
Package tracing provides lightweight request tracing for the host API.

Each HTTP request gets a span. Trace context is continued from the
X-Trace-ID and X-Span-ID request headers and returned in the same response
headers, so a player UI can correlate its calls with server logs. Finished
spans are buffered and logged by a collector goroutine.

# Usage

	tracer := tracing.New("scriptbridge", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "userapi.load")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("plugin_id", id)
*/
package tracing
