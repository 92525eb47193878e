// Package logx wraps zerolog behind a small structured-logging API.
//
// The Service owns the sinks (console, rotating file) and can re-apply a new
// Config at runtime without invalidating loggers already handed out.
package logx
