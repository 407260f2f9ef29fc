// Package logger builds *slog.Logger instances for pushkit components.
//
// New applies functional options (format, level, static attributes, context
// extractors) and wraps the resulting handler with LogHandlerDecorator, which
// copies request-scoped values from context.Context into every record.
//
// Attribute helpers keep key names consistent across packages:
//
//	log := logger.New(logger.WithEnvironment("development", "pushctl"))
//	log.LogAttrs(ctx, slog.LevelWarn, "unregister failed",
//	    logger.Component("push"),
//	    logger.Endpoint(sub.Endpoint),
//	    logger.Error(err),
//	)
//
// Error and Errors return an empty slog.Attr for nil errors, so callers can pass
// them unconditionally.
package logger
