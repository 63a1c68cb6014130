package varfont

import "github.com/npillmayer/schuko/tracing"

// tracer traces to the varfont selector, which is a no-op unless an adapter has been installed with tracing.SetTraceSelector.
func tracer() tracing.Trace {
	return tracing.Select("varfont")
}
