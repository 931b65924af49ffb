package futures

import "github.com/joeycumines/logiface"

// logifaceEvent is a minimal logiface.Event carrying exactly what
// LogEntry needs, grounded on the teacher's own testEvent (used in its
// test suite to exercise the same library, never in production code --
// logifaceAdapter promotes that usage into a real, wired [Logger]).
type logifaceEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields map[string]any
}

func (e *logifaceEvent) Level() logiface.Level { return e.level }

func (e *logifaceEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// LogifaceAdapter implements [Logger] by forwarding every entry to a
// *logiface.Logger[*logifaceEvent], letting a caller plug this package
// into whatever backend (zerolog, zap, stdlib slog, ...) they've already
// wired up for logiface elsewhere in their application.
type LogifaceAdapter struct {
	logger *logiface.Logger[*logifaceEvent]
}

// NewLogifaceAdapter wraps logger.
func NewLogifaceAdapter(logger *logiface.Logger[*logifaceEvent]) *LogifaceAdapter {
	return &LogifaceAdapter{logger: logger}
}

// IsEnabled implements [Logger]. logiface exposes no exported "would this
// level log" query, so this builds (and discards) a [logiface.Builder] the
// same way [LogifaceAdapter.Log] does -- a nil result means the level is
// disabled.
func (a *LogifaceAdapter) IsEnabled(level LogLevel) bool {
	return a.logger != nil && a.logger.Build(toLogifaceLevel(level)) != nil
}

// Log implements [Logger].
func (a *LogifaceAdapter) Log(entry LogEntry) {
	if a.logger == nil {
		return
	}
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Any("category", entry.Category)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

// NewLogifaceEventFactory returns a [logiface.EventFactory] for
// *logifaceEvent, suitable for passing to logiface.New alongside a
// caller-supplied logiface.WriteFunc/Writer that renders fields back out
// through zerolog, zap, or any other backend.
func NewLogifaceEventFactory() logiface.EventFactory[*logifaceEvent] {
	return logifaceEventFactory{}
}

type logifaceEventFactory struct{}

func (logifaceEventFactory) NewEvent(level logiface.Level) *logifaceEvent {
	return &logifaceEvent{level: level}
}
