package logging

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

// Log levels constants.
const (
	None = iota
	Error
	Warning
	Info
	Debug
)

// Logger is a leveled logger handle. It is constructed once at process start
// and passed explicitly to every component that needs it; there is no
// package-global logger state.
type Logger struct {
	level atomic.Int32
	out   *log.Logger
}

// New creates a Logger writing to w at the given level.
// The level is clamped to the valid range [None, Debug].
func New(w io.Writer, level int) *Logger {
	l := &Logger{
		out: log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.SetLevel(level)
	return l
}

// SetLevel atomically sets the logging level.
// It clamps the input level to the valid range [None, Debug].
func (l *Logger) SetLevel(level int) {
	if level < None {
		level = None
	} else if level > Debug {
		level = Debug
	}
	l.level.Store(int32(level))
}

// Level atomically retrieves the current logging level.
func (l *Logger) Level() int {
	return int(l.level.Load())
}

// SetOutput changes the output destination of the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.SetOutput(w)
}

// ParseLevel converts a log level string (case-insensitive) to its integer representation.
// Returns Info level and an error if the string is invalid.
func ParseLevel(levelStr string) (int, error) {
	switch strings.ToLower(levelStr) {
	case "none":
		return None, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warning, nil
	case "info":
		return Info, nil
	case "debug":
		return Debug, nil
	default:
		// Return Info level as default on parse failure, along with an error.
		return Info, fmt.Errorf("invalid log level string: '%s'", levelStr)
	}
}

// Logf logs a formatted message if the specified level is enabled.
func (l *Logger) Logf(level int, format string, v ...interface{}) {
	if int32(level) > l.level.Load() {
		return
	}

	var levelPrefix string
	switch level {
	case Error:
		levelPrefix = "[ERROR] "
	case Warning:
		levelPrefix = "[WARN] "
	case Info:
		levelPrefix = "[INFO] "
	case Debug:
		levelPrefix = "[DEBUG] "
	default:
		levelPrefix = "[UNKN] "
	}

	fullPrefix := levelPrefix

	// Debug messages carry caller information.
	if level == Debug {
		pc, file, line, ok := runtime.Caller(1)
		if ok {
			funcName := "???"
			if f := runtime.FuncForPC(pc); f != nil {
				funcName = filepath.Base(f.Name())
			}
			fullPrefix = fmt.Sprintf("%s%s:%d:%s ", levelPrefix, filepath.Base(file), line, funcName)
		} else {
			fullPrefix = fmt.Sprintf("%s???:0:??? ", levelPrefix)
		}
	}

	message := fmt.Sprintf(format, v...)
	l.out.Println(fullPrefix + message)
}
