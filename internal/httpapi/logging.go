package httpapi

import (
	"log"
	"net/http"
	"os"

	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// chunkLogWriter mirrors relayed generation chunks to the standard logger.
// Used at debug level so operators can watch what the proxy forwards.
type chunkLogWriter struct{}

func (chunkLogWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		if zlog != nil {
			zlog.Debug().Str("chunk", string(p)).Msg("relay")
		} else {
			log.Printf("relay> %s", p)
		}
	}
	return len(p), nil
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = func() LogLevel {
	if os.Getenv("LLMPROXY_LOG_CHUNKS") == "1" {
		return LevelDebug
	}
	return parseLevel(os.Getenv("LLMPROXY_LOG_LEVEL"))
}()

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}
