package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID       = "job_id"
	KeyJobStatus   = "job_status"
	KeyStep        = "step"
	KeyDurationMS  = "duration_ms"
	KeyWebsiteID   = "website_id"
	KeyBackendID   = "backend_id"
	KeyBackendType = "backend_type"
	KeyStorageID   = "storage_id"
	KeyHostingID   = "hosting_id"
	KeyCollection  = "collection"
	KeyRevision    = "revision"
	KeyEntityID    = "entity_id"
	KeySessionID   = "session_id"
	KeyPath        = "path"
	KeyFileCount   = "file_count"
	KeyMethod      = "method"
	KeyRemoteAddr  = "remote_addr"
	KeyRequestID   = "request_id"
	KeyStatus      = "status"
	KeyResponseSz  = "response_size"
	KeyURL         = "url"
	KeyName        = "name"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Step(name string) slog.Attr       { return slog.String(KeyStep, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func WebsiteID(id string) slog.Attr    { return slog.String(KeyWebsiteID, id) }
func BackendID(id string) slog.Attr    { return slog.String(KeyBackendID, id) }
func BackendType(t string) slog.Attr   { return slog.String(KeyBackendType, t) }
func StorageID(id string) slog.Attr    { return slog.String(KeyStorageID, id) }
func HostingID(id string) slog.Attr    { return slog.String(KeyHostingID, id) }
func Collection(name string) slog.Attr { return slog.String(KeyCollection, name) }
func Revision(rev uint64) slog.Attr    { return slog.Uint64(KeyRevision, rev) }
func EntityID(id string) slog.Attr     { return slog.String(KeyEntityID, id) }
func SessionID(id string) slog.Attr    { return slog.String(KeySessionID, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func FileCount(n int) slog.Attr        { return slog.Int(KeyFileCount, n) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func ResponseSize(n int) slog.Attr     { return slog.Int(KeyResponseSz, n) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr          { return slog.String(KeyName, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
