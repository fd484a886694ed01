package extraction

import "errors"

var (
	// ErrExtractionFailed wraps every error returned by the extractor.
	ErrExtractionFailed = errors.New("document extraction failed")

	// ErrNotConfigured is returned when no service URL is set.
	ErrNotConfigured = errors.New("extraction service URL not configured")
)
