// Package logging builds the process logger on log/slog.
//
// # Overview
//
// New returns a Logger embedding *slog.Logger with:
//   - JSON, text and console formats
//   - a level that can change at runtime (SetLevel)
//   - masking of API keys, bearer tokens, emails, passwords and custom
//     patterns in messages and string attributes
//   - the request ID and model taken from the context of *Context calls
//   - optional rotating file output through lumberjack
//
// # Usage
//
//	logger, err := logging.New(logging.ConfigFrom(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "call admitted", "api_key", "sk-abc123") // api_key masked
//
// Components receive logger.Logger (a *slog.Logger) and add a "component"
// attribute of their own.
package logging
