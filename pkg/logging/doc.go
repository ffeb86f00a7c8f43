// Package logging provides the structured logging facility used across
// deskhub.
//
// All components log through subsystem-tagged helpers backed by log/slog:
//
//	logging.Info("SessionRegistry", "registered session %s",
//	    logging.TruncateSessionID(sessionID))
//
// The level filter is configured once at startup via Init. Session
// identifiers must always pass through TruncateSessionID before logging;
// they correlate authenticated traffic and are treated as sensitive.
package logging
