// Package log provides the leveled logging interface used across the
// runtime.
//
// The package-level logger defaults to a stderr logger at info level and is
// what the graph runner and the persistence feature log through unless given
// an explicit Logger. Swap it with SetDefaultLogger, or silence everything:
//
//	log.SetDefaultLogger(&log.NoOpLogger{})
//
// For applications already using github.com/kataras/golog, NewGologLogger
// wraps an existing golog.Logger in the same interface:
//
//	glogger := golog.New()
//	log.SetDefaultLogger(log.NewGologLogger(glogger))
package log
