package internal

import (
	"log/slog"
	"runtime/debug"
	"time"
)

var (
	BuildRevision      = "unknown"
	BuildRevisionTime  = time.Time{}
	BuildLocalModified = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			BuildRevision = setting.Value
		case "vcs.time":
			t, err := time.Parse(time.RFC3339, setting.Value)
			if err == nil {
				BuildRevisionTime = t
			}
		case "vcs.modified":
			BuildLocalModified = setting.Value
		}
	}
}

// BuildAttrs groups the build information for logging.
func BuildAttrs() slog.Attr {
	return slog.Group("build",
		"revision", BuildRevision,
		"revisionTime", BuildRevisionTime,
		"localModified", BuildLocalModified,
	)
}
