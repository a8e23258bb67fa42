// Package errors provides structured error types for the fuel scheduler.
//
// Every error carries a Phase (where it happened) and a Kind (what went
// wrong), so callers can match on the pair with errors.Is without parsing
// message strings:
//
//	err := s.AddTask(...)
//	if errors.Is(err, &scherr.Error{Phase: scherr.PhaseSchedule, Kind: scherr.KindResourceLimitExceeded}) {
//	    // shed load
//	}
//
// Convenience constructors cover the common cases; the Builder is for errors
// that need a path or an offending value attached.
package errors
