package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyModuleID   = "module_id"
	KeyPath       = "path"
	KeyRoot       = "root"
	KeyOutput     = "output"
	KeyStage      = "stage"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyInterval   = "interval"
	KeyError      = "error"
	KeyReferrers  = "referenced_by"
	KeyURL        = "url"
	KeySubject    = "subject"
	KeyStatus     = "status"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func ModuleID(id string) slog.Attr    { return slog.String(KeyModuleID, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Root(p string) slog.Attr         { return slog.String(KeyRoot, p) }
func Output(o string) slog.Attr       { return slog.String(KeyOutput, o) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Interval(s string) slog.Attr     { return slog.String(KeyInterval, s) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }

// ReferencedBy lists the ids that refer to a module.
func ReferencedBy(ids []string) slog.Attr {
	return slog.Any(KeyReferrers, ids)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
