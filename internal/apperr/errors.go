// Package apperr holds the sentinel errors shared across flashdeck packages.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnsupported  = errors.New("unsupported by the configured source")
	ErrInvalidInput = errors.New("invalid input")

	// ErrCredential means the storage credential could not be loaded or was rejected.
	ErrCredential = errors.New("storage credential unavailable")

	// ErrFolderMissing means the configured image folder does not exist or is not shared.
	ErrFolderMissing = errors.New("image folder not found")

	// ErrTransientFetch means a listing page kept failing after retries.
	ErrTransientFetch = errors.New("listing page fetch failed")

	ErrEmptyInput        = errors.New("no words given")
	ErrNoMatch           = errors.New("no word matched an image")
	ErrEmptyPresentation = errors.New("nothing selected to present")
	ErrInvalidTransition = errors.New("action not available on this screen")
	ErrBusy              = errors.New("another action is still running")
)
