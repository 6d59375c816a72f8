package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// CarLogger is implemented by loggers able to tag entries with a car id.
type CarLogger interface {
	ForCar(id int64) Logger
}

// ForCar returns l tagged with the car id when supported, l otherwise.
func ForCar(l Logger, id int64) Logger {
	if cl, ok := l.(CarLogger); ok {
		return cl.ForCar(id)
	}
	return l
}

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
