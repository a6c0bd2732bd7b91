package domain

import "fmt"

// FetchError reports a failed archive request: transport failure, non-200
// status, or a body that is not an alert listing.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a payload in which no line matched the alert layout.
// Individual malformed lines never produce a ParseError; they are skipped.
type ParseError struct {
	Lines   int // non-blank lines examined
	Skipped int
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse payload: %d of %d lines unparseable: %v", e.Skipped, e.Lines, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FilesystemError reports a failure creating the output directory or writing
// an artifact.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
