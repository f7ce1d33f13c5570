package audit

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger appends one JSON line per Event to a journal file. A nil Logger or
// one with an empty path discards events.
type Logger struct {
	path string

	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
}

type Event struct {
	Operation string
	Phase     string
	Status    string
	Code      string
	Source    string
	Items     []string
	Message   string
}

func New(path string) *Logger {
	return &Logger{path: path}
}

func (l *Logger) Log(ev Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger == nil {
		if err := l.open(); err != nil {
			return err
		}
	}
	fields := []zap.Field{
		zap.String("phase", ev.Phase),
		zap.String("status", ev.Status),
	}
	if ev.Code != "" {
		fields = append(fields, zap.String("code", ev.Code))
	}
	if ev.Source != "" {
		fields = append(fields, zap.String("source", ev.Source))
	}
	if len(ev.Items) > 0 {
		fields = append(fields, zap.Strings("items", ev.Items))
	}
	if ev.Message != "" {
		fields = append(fields, zap.String("message", ev.Message))
	}
	l.logger.Info(ev.Operation, fields...)
	return nil
}

// Close flushes and closes the journal file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	_ = l.logger.Sync()
	err := l.file.Close()
	l.file, l.logger = nil, nil
	return err
}

func (l *Logger) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "operation"
	enc.LevelKey = ""
	enc.CallerKey = ""
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.DebugLevel)
	l.file = f
	l.logger = zap.New(core)
	return nil
}
