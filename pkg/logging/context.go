package logging

import (
	"go.uber.org/zap"
)

// WithTx creates a logger with transaction context.
// Use this to automatically include transaction ID in all logs.
//
// Example:
//
//	log := logging.WithTx(tx.ID.ID())
//	log.Info("rolling back", zap.Int("undo_entries", n))
func WithTx(txID int64) *zap.Logger {
	return GetLogger().With(zap.Int64("tx_id", txID))
}

// WithTable creates a logger with table context.
// Use this for catalog and DDL operations.
func WithTable(tableName string) *zap.Logger {
	return GetLogger().With(zap.String("table", tableName))
}

// WithTableTx creates a logger with both transaction and table context.
func WithTableTx(txID int64, tableName string) *zap.Logger {
	return GetLogger().With(zap.Int64("tx_id", txID), zap.String("table", tableName))
}

// WithCursor creates a logger with cursor context.
func WithCursor(cursorName string) *zap.Logger {
	return GetLogger().With(zap.String("cursor", cursorName))
}

// WithLock creates a logger with lock context.
// Useful for concurrency and lock manager operations.
func WithLock(txID int64, resource string) *zap.Logger {
	return GetLogger().With(zap.Int64("tx_id", txID), zap.String("resource", resource))
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("catalog")
//	log.Info("component initialized")
func WithComponent(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

// WithError creates a logger with error context.
func WithError(err error) *zap.Logger {
	return GetLogger().With(zap.Error(err))
}
