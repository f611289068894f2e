// Package jsengine adapts the goja ECMAScript interpreter to the narrow
// engine contract the core consumes: upfront parsing, a blocking
// evaluation with captured console output, a cooperative interrupt with
// a bounded wait, and an idempotent force-close.
package jsengine
