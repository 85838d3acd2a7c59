package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID      = "build_id"
	KeyDocName      = "docname"
	KeyPath         = "path"
	KeyPlugin       = "plugin"
	KeyEvent        = "event"
	KeyStage        = "stage"
	KeyToken        = "token"
	KeyTokens       = "tokens"
	KeyReplacements = "replacements"
	KeyDocuments    = "documents"
	KeyWorkers      = "workers"
	KeyDurationMS   = "duration_ms"
	KeyAddr         = "addr"
	KeyRevision     = "revision"
	KeySubject      = "subject"
	KeyJob          = "job"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func DocName(name string) slog.Attr   { return slog.String(KeyDocName, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Plugin(name string) slog.Attr    { return slog.String(KeyPlugin, name) }
func Event(name string) slog.Attr     { return slog.String(KeyEvent, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Token(t string) slog.Attr        { return slog.String(KeyToken, t) }
func Tokens(n int) slog.Attr          { return slog.Int(KeyTokens, n) }
func Replacements(n int) slog.Attr    { return slog.Int(KeyReplacements, n) }
func Documents(n int) slog.Attr       { return slog.Int(KeyDocuments, n) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func Revision(r string) slog.Attr     { return slog.String(KeyRevision, r) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Job(name string) slog.Attr       { return slog.String(KeyJob, name) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
