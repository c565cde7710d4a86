package types

type RunMode string

const (
	// ModeLocal runs the API server with the in-process event stream
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LockerBackend selects the implementation used to serialize work per key
type LockerBackend string

const (
	LockerBackendMemory LockerBackend = "memory"
	LockerBackendRedis  LockerBackend = "redis"
)
