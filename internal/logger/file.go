package logger

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultFileMaxSizeMB = 100
	defaultFileMaxFiles  = 5
)

// FileConfig describes the rotating log file used when logging.output is
// "file". Zero values fall back to the defaults below.
type FileConfig struct {
	Path      string
	MaxSizeMB int
	MaxFiles  int
}

// DefaultLogFile is used when no path is configured.
func DefaultLogFile() string {
	return filepath.Join(os.TempDir(), "post_office", "post_office.log")
}

// NewFileWriter opens a size-rotated, gzip-compressed log file. The file and
// its directory are created on the first write.
func NewFileWriter(cfg FileConfig) io.WriteCloser {
	if cfg.Path == "" {
		cfg.Path = DefaultLogFile()
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultFileMaxSizeMB
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultFileMaxFiles
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		Compress:   true,
	}
}
