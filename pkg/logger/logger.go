package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	DebugLog *log.Logger
	InfoLog  *log.Logger
	WarnLog  *log.Logger
	ErrorLog *log.Logger
	logFile  *os.File
	level    = INFO
	mu       sync.Mutex
)

const (
	DEBUG = iota
	INFO
	WARN
	ERROR
)

const flags = log.Ldate | log.Ltime | log.Lshortfile

// ParseLevel maps a LOG_LEVEL value to a level constant, defaulting to INFO.
func ParseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// InitLogger initializes the logger with stderr output, tee-ing to filename when set.
// Stdout is left to the sync message stream.
func InitLogger(filename string, lvl int) error {
	mu.Lock()
	defer mu.Unlock()

	var w io.Writer = os.Stderr
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		logFile = f
		w = io.MultiWriter(os.Stderr, logFile)
	}
	setOutput(w)
	level = lvl
	return nil
}

// SetOutput redirects every level to w. Tests use it to capture log lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	setOutput(w)
}

func setOutput(w io.Writer) {
	DebugLog = log.New(w, "DEBUG: ", flags)
	InfoLog = log.New(w, "INFO: ", flags)
	WarnLog = log.New(w, "WARN: ", flags)
	ErrorLog = log.New(w, "ERROR: ", flags)
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Init() {
	setOutput(os.Stderr)
}

func output(l **log.Logger, lvl int, format string, v ...interface{}) {
	mu.Lock()
	if *l == nil {
		Init()
	}
	logger, enabled := *l, lvl >= level
	mu.Unlock()
	if enabled {
		_ = logger.Output(3, fmt.Sprintf(format, v...))
	}
}

func Debugf(format string, v ...interface{}) {
	output(&DebugLog, DEBUG, format, v...)
}

func Infof(format string, v ...interface{}) {
	output(&InfoLog, INFO, format, v...)
}

func Warnf(format string, v ...interface{}) {
	output(&WarnLog, WARN, format, v...)
}

func Errorf(format string, v ...interface{}) {
	output(&ErrorLog, ERROR, format, v...)
}
