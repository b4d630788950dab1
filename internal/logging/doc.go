// Package logging provides structured logging for panedrive.
//
// This package wraps Go's log/slog to provide JSON-formatted logs that can
// be filtered by pane, session, or request after the fact. Pane commands and
// launches run concurrently, so every entry carries the identifiers needed
// to reassemble one logical action from interleaved output.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Rotation
//
// NewRotatingLogger shifts panedrive.log to panedrive.log.1, .2, ... once it
// reaches Rotation.MaxSizeMB, keeping Rotation.MaxBackups old files.
// ReadEntries merges the live file and its backups back into one timeline
// and Filter narrows it to a session, pane or request.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/panedrive", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	launchLog := logger.WithSession("dev-main").WithRequest("req-42")
//	launchLog.Info("window created", "window_id", "@12", "pane_id", "%31")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"window created","session":"dev-main","request_id":"req-42","window_id":"@12","pane_id":"%31"}
package logging
