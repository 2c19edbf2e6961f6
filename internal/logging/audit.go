package logging

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditLogName is the fixed file every gateway audit entry goes to.
const AuditLogName = "open_payment.log"

// AuditLog appends raw gateway exchanges to a flat file, one timestamped
// entry per call. It is separate from the structured service log on purpose:
// entries hold full responses and are meant for operators, not log pipelines.
type AuditLog struct {
	l    *zap.Logger
	path string
}

// NewAuditLog opens (creating if needed) dir/open_payment.log.
func NewAuditLog(dir string) (*AuditLog, error) {
	path := filepath.Join(dir, AuditLogName)
	if err := ensureLogFile(path); err != nil {
		return nil, fmt.Errorf("prepare audit log: %w", err)
	}

	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding:          "console",
		EncoderConfig:     enc,
		OutputPaths:       []string{path},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     true,
		DisableStacktrace: true,
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build audit log: %w", err)
	}
	return &AuditLog{l: l, path: path}, nil
}

// Log writes one entry.
func (a *AuditLog) Log(entry string) {
	a.l.Info(entry)
}

// Path returns the file the log writes to.
func (a *AuditLog) Path() string {
	return a.path
}

// Sync flushes buffered entries. Safe to call on shutdown.
func (a *AuditLog) Sync() error {
	return a.l.Sync()
}
