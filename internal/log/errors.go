package log

import "go.uber.org/zap"

// LogError wraps logger.Error with err attached as a field, matching the
// call-site convention used throughout this module: recoverable errors log
// and continue (spec.md §7), process-fatal ones call LogError then os.Exit
// with the code from the command that detected them.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	logger.Error(msg, append([]zap.Field{zap.Error(err)}, fields...)...)
}
