package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// accessLogger logs forwarded requests to a file with size-based rotation.
type accessLogger struct {
	path    string
	maxSize int64 // max file size in bytes before rotation (0 = no limit)
	file    *os.File
	size    int64
	mu      sync.Mutex
	logger  *slog.Logger
}

const (
	defaultAccessMaxSize = 50 * 1024 * 1024 // 50 MiB
	accessKeepFiles      = 3                // keep current + 3 rotated files
)

type accessEntry struct {
	RequestID    string        `json:"request_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Duration     time.Duration `json:"duration_ns"`
	ActivationID string        `json:"activation_id,omitempty"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	StatusCode   int           `json:"status_code"`
	RequestSize  int64         `json:"request_size"`
	RemoteAddr   string        `json:"remote_addr"`
}

func newAccessLogger(path string, logger *slog.Logger) (*accessLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	info, _ := f.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}
	return &accessLogger{
		path:    path,
		maxSize: defaultAccessMaxSize,
		file:    f,
		size:    size,
		logger:  logger,
	}, nil
}

func (al *accessLogger) log(entry accessEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		al.logger.Warn("access log encode failed", "error", err)
		return
	}
	data = append(data, '\n')

	al.mu.Lock()
	defer al.mu.Unlock()

	n, err := al.file.Write(data)
	al.size += int64(n)
	if err != nil {
		al.logger.Warn("access log write failed", "error", err)
		return
	}

	if al.maxSize > 0 && al.size >= al.maxSize {
		al.rotate()
	}
}

func (al *accessLogger) rotate() {
	al.file.Close()

	// Shift existing rotated files: .3 -> deleted, .2 -> .3, .1 -> .2, current -> .1
	for i := accessKeepFiles; i > 0; i-- {
		old := fmt.Sprintf("%s.%d", al.path, i)
		if i == accessKeepFiles {
			os.Remove(old)
		}
		if i > 1 {
			prev := fmt.Sprintf("%s.%d", al.path, i-1)
			os.Rename(prev, old)
		} else {
			os.Rename(al.path, old)
		}
	}

	f, err := os.OpenFile(al.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		al.logger.Warn("access log rotation failed", "error", err)
		return
	}
	al.file = f
	al.size = 0
}

func (al *accessLogger) close() error {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.file.Close()
}
