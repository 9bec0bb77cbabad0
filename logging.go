package obstack

import "log/slog"

// logInvalidPointer reports a pointer-validation failure through the
// default slog logger. Library code never configures a handler itself;
// callers wire one in cmd/ the way pgaskin-ottrec-website does.
func logInvalidPointer(msg string) {
	slog.Warn("obstack: " + msg)
}
