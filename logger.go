// Package asynclog is an asynchronous, structured application logger.
// Producers submit records at a severity level on a named channel; a single
// background worker formats each record against that channel's template and
// delivers it to a console or HTTP sink, spooling to disk when the HTTP
// endpoint is unreachable.
package asynclog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vpbank/asynclog/internal/dispatcher"
	"github.com/vpbank/asynclog/internal/queue"
	"github.com/vpbank/asynclog/internal/registry"
	"github.com/vpbank/asynclog/internal/sink/console"
	"github.com/vpbank/asynclog/internal/sink/httpsink"
	"github.com/vpbank/asynclog/internal/template"
	"github.com/vpbank/asynclog/internal/templatefile"
)

// mainChannelID is the channel registered automatically at construction, so
// the default channel is always usable without an explicit RegisterChannel.
const mainChannelID = "main"

// sink is the lifecycle contract both console and HTTP sinks satisfy.
type sink interface {
	Init() error
	Write(line string) error
	Close() error
}

// Logger owns the queue, template registry, sink, and dispatcher for one
// process-wide logging pipeline.
type Logger struct {
	mu    sync.Mutex // guards base template + registry
	reg   *registry.Registry
	level queue.Level

	q       *queue.RingQueue
	sink    sink
	disp    *dispatcher.Dispatcher
	running atomic.Bool

	logger *slog.Logger
}

var (
	globalOnce   sync.Once
	globalLogger *Logger
	globalErr    error
)

// Init constructs the process-wide Logger from opts. Only the first call in
// a process takes effect; every subsequent call returns the instance (and
// error, if any) produced by that first call, ignoring its own opts.
func Init(opts Options) (*Logger, error) {
	globalOnce.Do(func() {
		globalLogger, globalErr = newLogger(opts)
	})
	return globalLogger, globalErr
}

// Global returns the process-wide Logger constructed by Init, if Init has
// been called at least once. ok is false before the first Init call.
func Global() (*Logger, bool) {
	return globalLogger, globalLogger != nil
}

// New constructs an independent Logger, bypassing the process-wide
// singleton. Most callers want Init/Global; New exists for tests and for
// processes that genuinely need more than one pipeline.
func New(opts Options) (*Logger, error) {
	return newLogger(opts)
}

func newLogger(opts Options) (*Logger, error) {
	opts.withDefaults()

	base, err := buildBaseTemplate(opts)
	if err != nil {
		return nil, err
	}

	lg := &Logger{
		reg:    registry.New(base),
		level:  queue.ParseLevel(opts.Level),
		q:      queue.NewRingQueue(opts.BufferCapacity),
		logger: opts.Logger,
	}
	lg.running.Store(true)

	s, err := buildSink(opts)
	if err != nil {
		lg.q.Close()
		return nil, err
	}
	lg.sink = s

	if err := s.Init(); err != nil {
		lg.logger.Error("asynclog: sink init failed", "error", err.Error())
		lg.running.Store(false)
		lg.q.Close()
		return nil, fmt.Errorf("asynclog: sink init: %w", err)
	}

	lg.disp = dispatcher.New(lg.q, lg.lookupTemplate, lg.sink, &lg.running, lg.logger)
	lg.disp.Start()

	lg.RegisterChannel(mainChannelID)
	lg.logger.Info("asynclog: logger initialized",
		"output", string(opts.OutputKind), "level", lg.level.String(), "buffer", opts.BufferCapacity)
	return lg, nil
}

// buildBaseTemplate resolves the base format and initial global values from
// opts.BaseFormat/opts.Globals, then lets a present opts.TemplatePath file
// override/extend them.
func buildBaseTemplate(opts Options) (*template.Message, error) {
	format := opts.BaseFormat
	globals := opts.Globals

	if opts.TemplatePath != "" {
		def, err := templatefile.Load(opts.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("asynclog: load template file: %w", err)
		}
		if def != nil {
			if def.BaseFormat != "" {
				format = def.BaseFormat
			}
			if len(def.Globals) > 0 {
				merged := make(map[string]string, len(globals)+len(def.Globals))
				for k, v := range globals {
					merged[k] = v
				}
				for k, v := range def.Globals {
					merged[k] = v
				}
				globals = merged
			}
		}
	}

	compiled, err := template.Parse(format)
	if err != nil {
		return nil, fmt.Errorf("asynclog: base format: %w", err)
	}
	msg := template.NewMessage(compiled)
	msg.InjectRecordID = opts.InjectRecordID
	for name, value := range globals {
		msg.SetValue(name, value)
	}
	return msg, nil
}

func buildSink(opts Options) (sink, error) {
	switch opts.OutputKind {
	case OutputHTTP:
		return httpsink.New(httpsink.Config{
			Host:          opts.Host,
			Port:          opts.Port,
			SpoolPath:     opts.SpoolPath,
			DialTimeout:   opts.DialTimeout,
			ReplyDeadline: opts.ReplyDeadline,
		}, opts.Logger), nil
	case OutputConsole:
		return console.New(opts.Writer, opts.Logger), nil
	default:
		return nil, fmt.Errorf("asynclog: unknown output kind %q", opts.OutputKind)
	}
}

// lookupTemplate is the dispatcher.TemplateLookup implementation. It takes
// the logger mutex, and creates the channel's entry from the current base
// template if this record is the first ever seen for that channel ID.
func (l *Logger) lookupTemplate(channelID string) *template.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.FindOrCreate(channelID)
}

// Channel returns a handle bound to channelID, registering it if this is the
// first reference to that ID.
func (l *Logger) Channel(channelID string) *Channel {
	l.RegisterChannel(channelID)
	return &Channel{logger: l, id: channelID}
}

// RegisterChannel ensures an entry exists for channelID, cloned from the
// current base template if this is the first touch.
func (l *Logger) RegisterChannel(channelID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reg.FindOrCreate(channelID)
}

// SetBaseFormat reparses format and, on success, broadcasts it to every
// registered channel's template. On a BadFormatError the previous base
// template is left untouched and the error is returned.
func (l *Logger) SetBaseFormat(format string) error {
	compiled, err := template.Parse(format)
	if err != nil {
		return err
	}
	newBase := template.NewMessage(compiled)

	l.mu.Lock()
	defer l.mu.Unlock()
	newBase.InjectRecordID = l.reg.Base().InjectRecordID
	l.reg.SetBase(newBase)
	return nil
}

// SetGlobalValue sets name/value on the base template and, only if the base
// template has that slot, broadcasts it to every registered channel. It
// returns whether the base template has the slot.
func (l *Logger) SetGlobalValue(name, value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.reg.Base().SetValue(name, value) {
		return false
	}
	l.reg.BroadcastValue(name, value)
	return true
}

// SetChannelValue sets name/value on channelID's own template, creating the
// channel lazily if it doesn't exist yet. It returns whether that channel's
// template has the slot.
func (l *Logger) SetChannelValue(channelID, name, value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.reg.FindOrCreate(channelID)
	return m.SetValue(name, value)
}

// submit enqueues a record if level clears the configured minimum. UNKNOWN
// as the configured minimum admits every level, since it is the lowest
// ordinal.
func (l *Logger) submit(channelID, message string, level queue.Level) {
	if l.level > level {
		return
	}
	l.q.Put(queue.NewRecord(message, level, channelID))
}

// Trace, Debug, Info, Warning, Error, and Critical submit a record on
// channelID at the named severity, subject to the configured minimum level.
func (l *Logger) Trace(channelID, message string)    { l.submit(channelID, message, queue.Trace) }
func (l *Logger) Debug(channelID, message string)    { l.submit(channelID, message, queue.Debug) }
func (l *Logger) Info(channelID, message string)     { l.submit(channelID, message, queue.Info) }
func (l *Logger) Warning(channelID, message string)  { l.submit(channelID, message, queue.Warning) }
func (l *Logger) Error(channelID, message string)    { l.submit(channelID, message, queue.Error) }
func (l *Logger) Critical(channelID, message string) { l.submit(channelID, message, queue.Critical) }

// Shutdown clears the running flag, drains the queue, and releases the
// sink. Clearing running causes the dispatcher to deliver every record
// already enqueued and then exit; Shutdown blocks until that happens or ctx
// is done. Records submitted after Shutdown begins race the drain and may
// or may not be delivered.
func (l *Logger) Shutdown(ctx context.Context) error {
	l.running.Store(false)

	done := make(chan struct{})
	go func() {
		l.disp.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("asynclog: shutdown: %w", ctx.Err())
	}

	l.q.Close()
	if err := l.sink.Close(); err != nil {
		return fmt.Errorf("asynclog: shutdown: close sink: %w", err)
	}
	l.logger.Info("asynclog: shutdown complete")
	return nil
}
