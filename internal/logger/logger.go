package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

var levelColors = map[string][]color.Attribute{
	"DEBUG": {color.FgCyan},
	"INFO":  {color.FgGreen},
	"WARN":  {color.FgYellow},
	"ERROR": {color.FgRed},
	"FATAL": {color.FgRed, color.Bold},
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLevel(name string) LogLevel {
	for level, n := range levelNames {
		if strings.EqualFold(n, name) {
			return level
		}
	}
	return INFO
}

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Options struct {
	// Service names the log file: <Dir>/<Service>-<date>.log
	Service string
	// Dir is where JSON log files go. Empty disables file output.
	Dir      string
	MinLevel LogLevel
	// Output receives the human readable lines. Defaults to stdout.
	Output io.Writer
	Color  bool
}

type Logger struct {
	mu       sync.Mutex
	service  string
	out      io.Writer
	logFile  *os.File
	minLevel LogLevel
	color    bool
	exit     func(int)
}

func New(opts Options) (*Logger, error) {
	l := &Logger{
		service:  opts.Service,
		out:      opts.Output,
		minLevel: opts.MinLevel,
		color:    opts.Color,
		exit:     os.Exit,
	}
	if l.out == nil {
		l.out = os.Stdout
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		name := opts.Service
		if name == "" {
			name = "service"
		}
		path := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", name, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.logFile = f
		l.Info("LOGGER", fmt.Sprintf("Log file: %s", path))
	}
	return l, nil
}

// NewLogger is New with the defaults used by the service binaries; it exits
// when the log file cannot be opened.
func NewLogger(service string) *Logger {
	l, err := New(Options{Service: service, Dir: "logs", Color: true})
	if err != nil {
		log.Fatal("Failed to initialise logger: ", err)
	}
	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	l, _ := New(Options{Output: io.Discard, MinLevel: FATAL + 1})
	return l
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil || level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelNames[level],
		Service:   l.service,
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, l.formatTerminalOutput(entry))
	if l.logFile != nil {
		jsonBytes, _ := json.Marshal(entry)
		l.logFile.Write(append(jsonBytes, '\n'))
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]
	if !l.color {
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", timestamp, entry.Level, entry.Category, entry.Message)
	}

	attrs, ok := levelColors[entry.Level]
	if !ok {
		attrs = []color.Attribute{color.FgWhite}
	}
	levelColor := color.New(attrs...)
	categoryColor := color.New(append([]color.Attribute{color.Bold}, attrs...)...)

	line := fmt.Sprintf("%s %s %s %s",
		color.New(color.FgBlue).Sprint(timestamp),
		levelColor.Sprintf("%-5s", entry.Level),
		categoryColor.Sprintf("[%-10s]", entry.Category),
		entry.Message)
	if entry.File != "" && entry.Line > 0 {
		line += color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
	}
	return line + "\n"
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	l.exit(1)
}

func (l *Logger) LogOrder(action, orderID, message string) {
	l.Info("ORDER", fmt.Sprintf("[%s] %s - %s", action, orderID, message))
}

func (l *Logger) LogTransition(orderID, from, to string) {
	l.Info("LIFECYCLE", fmt.Sprintf("%s: %s -> %s", orderID, from, to))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.Info("API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogEmail(templateID, recipient, message string) {
	l.Info("EMAIL", fmt.Sprintf("[%s] %s - %s", templateID, recipient, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l == nil || l.logFile == nil {
		return
	}
	l.Info("LOGGER", "Closing log file")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logFile.Close()
	l.logFile = nil
}
