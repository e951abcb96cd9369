package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileRotationConfig contains file logging rotation settings
type FileRotationConfig struct {
	Path       string `yaml:"path" json:"path"`                                   // Log file path (required)
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"` // Maximum size in megabytes before rotation (default: 100)
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"` // Maximum number of old log files to retain (default: 3)
	MaxAge     int    `yaml:"max_age,omitempty" json:"max_age,omitempty"`         // Maximum number of days to retain old log files (default: 28)
	Compress   bool   `yaml:"compress,omitempty" json:"compress,omitempty"`       // Whether to compress rotated log files (default: false)
}

// NewLoggerWithFile creates a logger that writes to both console and a rotated file.
// Colors are always off when a file is attached so it stays free of ANSI codes.
func NewLoggerWithFile(module string, level Level, useColors bool, fileConfig *FileRotationConfig) (*SimpleLogger, error) {
	if fileConfig == nil || fileConfig.Path == "" {
		return NewSimpleLogger(module, level, useColors), nil
	}

	maxSizeMB := fileConfig.MaxSizeMB
	if maxSizeMB == 0 {
		maxSizeMB = 100
	}

	maxBackups := fileConfig.MaxBackups
	if maxBackups == 0 {
		maxBackups = 3
	}

	maxAge := fileConfig.MaxAge
	if maxAge == 0 {
		maxAge = 28
	}

	fileWriter := &lumberjack.Logger{
		Filename:   fileConfig.Path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   fileConfig.Compress,
	}

	return NewSimpleLoggerWithWriter(module, level, false, io.MultiWriter(os.Stdout, fileWriter)), nil
}
