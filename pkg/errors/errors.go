// Package errors defines the shared error taxonomy of the preloader and
// small helpers for wrapping errors with context.
package errors

import "fmt"

// Common error types.
var (
	// Remote protocol errors.
	ErrProtocol          = fmt.Errorf("unexpected response from remote service")
	ErrNotReady          = fmt.Errorf("download job is not finished yet")
	ErrDownloadFailed    = fmt.Errorf("download failed")
	ErrUnsupportedSource = fmt.Errorf("unsupported download source")

	// Payload and mosaic errors.
	ErrNoFilesFound  = fmt.Errorf("no raster files found in download payload")
	ErrNoMosaicInput = fmt.Errorf("no staged tiles to merge")

	// Credential errors.
	ErrMissingCredentials = fmt.Errorf("credentials file is missing required fields")
	ErrTokenRequest       = fmt.Errorf("token request failed")

	// Config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")

	// Cache and path errors.
	ErrInvalidPath    = fmt.Errorf("invalid path")
	ErrCacheDirectory = fmt.Errorf("cache directory cannot be empty")
	ErrInvalidKey     = fmt.Errorf("malformed dataset key")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
