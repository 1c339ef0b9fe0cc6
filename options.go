package asynclog

import (
	"io"
	"log/slog"
	"time"
)

// OutputKind selects which sink a Logger delivers records through.
type OutputKind string

const (
	OutputConsole OutputKind = "console"
	OutputHTTP    OutputKind = "http"
)

// Options configures a Logger at construction time. Of the calls to Init in
// a process, only the first observes these values — see Init's doc comment;
// every New call uses its own.
type Options struct {
	// OutputKind selects the sink. Default: OutputConsole.
	OutputKind OutputKind

	// Host and Port address the HTTP sink's endpoint. Ignored for
	// OutputConsole.
	Host string
	Port string

	// SpoolPath is the local file the HTTP sink spools to while the
	// endpoint is unreachable. Default: "asynclog_spool.log".
	SpoolPath string

	// Writer backs the console sink. Default: os.Stdout. Ignored for
	// OutputHTTP.
	Writer io.Writer

	// TemplatePath, if non-empty, points at a YAML file declaring the base
	// format string and initial global slot values (internal/templatefile).
	// Absence is not an error.
	TemplatePath string

	// BaseFormat seeds the base template directly, used when TemplatePath
	// is empty or as the fallback format if the file omits base_format.
	// Default: "[<TIME>][<LEVEL>] <MSG>".
	BaseFormat string

	// Globals seeds initial slot values on the base template, applied
	// before TemplatePath's globals (file values win on conflict).
	Globals map[string]string

	// Level is the minimum severity name admitted to the queue,
	// case-insensitive. Default: "INFO". An unrecognised name resolves to
	// UNKNOWN, which — per this logger's design — admits every record.
	Level string

	// BufferCapacity is the ring queue's fixed capacity. Default: 1024.
	BufferCapacity int

	// InjectRecordID enables the optional _LOGGER_OPTIONS_UUID reserved
	// slot on every serialized record.
	InjectRecordID bool

	// DialTimeout and ReplyDeadline tune the HTTP sink's network waits.
	// Zero means use internal/sink/httpsink's defaults. Ignored for
	// OutputConsole.
	DialTimeout   time.Duration
	ReplyDeadline time.Duration

	// Logger receives structured diagnostics from every component.
	// Default: a slog.Logger discarding all output.
	Logger *slog.Logger
}

func (o *Options) withDefaults() {
	if o.OutputKind == "" {
		o.OutputKind = OutputConsole
	}
	if o.SpoolPath == "" {
		o.SpoolPath = "asynclog_spool.log"
	}
	if o.BaseFormat == "" {
		o.BaseFormat = "[<TIME>][<LEVEL>] <MSG>"
	}
	if o.Level == "" {
		o.Level = "INFO"
	}
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = 1024
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
