// Package logger writes structured JSONL events, one object per line.
package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Fields are the event attributes written next to ts, level and msg.
type Fields = map[string]any

var (
	mu     sync.Mutex
	logger *log.Logger
	debug  bool
)

// Init opens <dir>/app.log for appending. An empty dir logs to stderr.
func Init(dir string) error {
	if dir == "" {
		SetOutput(os.Stderr)
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	SetOutput(f)
	return nil
}

// SetOutput redirects events to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = log.New(w, "", 0)
	mu.Unlock()
}

func SetDebug(enabled bool) {
	mu.Lock()
	debug = enabled
	mu.Unlock()
}

func DebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debug
}

func Debug(msg string, fields Fields) {
	if !DebugEnabled() {
		return
	}
	write("debug", msg, fields)
}

func Info(msg string, fields Fields) {
	write("info", msg, fields)
}

func Warn(msg string, fields Fields) {
	write("warn", msg, fields)
}

func Error(msg string, fields Fields) {
	write("error", msg, fields)
}

func write(level, msg string, fields Fields) {
	event := make(Fields, len(fields)+3)
	for k, v := range fields {
		event[k] = v
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	event["ts"] = now
	event["level"] = level
	event["msg"] = msg

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	enc, err := json.Marshal(event)
	if err != nil {
		logger.Printf(`{"ts":"%s","level":"error","msg":"log_marshal_failed","error":%q}`, now, err.Error())
		return
	}
	logger.Println(string(enc))
}
