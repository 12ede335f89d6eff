// Package logging provides a process-wide structured logger for dictengine.
//
// The package wraps [go.uber.org/zap] and exposes a single global logger
// instance that is initialized once and then retrieved via GetLogger. All
// subsystems obtain a logger through this package rather than constructing
// their own, so that log level and output destination are controlled from a
// single place.
//
// # Initialisation
//
// Call Init (or InitDefault for defaults) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug}); err != nil {
//	    log.Fatal(err)
//	}
//
// InitDefault writes WARN-level console logs to stderr without a log file.
//
// # Context helpers
//
// Several helpers return child loggers pre-populated with structured fields:
//
//	log := logging.WithTx(txID)          // adds tx_id field
//	log := logging.WithTable(name)       // adds table field
//	log := logging.WithComponent("ddl")  // adds component field
package logging
