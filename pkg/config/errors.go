package config

import "errors"

var (
	// ErrConfigFileNotFound is returned when config file is not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrUnsupportedFormat is returned for file extensions other than .yaml, .yml and .json
	ErrUnsupportedFormat = errors.New("unsupported config file format")

	// ErrUnknownPreset is returned when proxy.preset names no built-in preset
	ErrUnknownPreset = errors.New("unknown proxy preset")

	// ErrDuplicateRule is returned when two explicit rules share a prefix or glob
	ErrDuplicateRule = errors.New("duplicate proxy rule")

	// ErrInvalidPort is returned when server.port is out of range
	ErrInvalidPort = errors.New("server port must be between 0 and 65535")

	// ErrInvalidLogLevel is returned for an unknown logging.level
	ErrInvalidLogLevel = errors.New("invalid log level")
)
