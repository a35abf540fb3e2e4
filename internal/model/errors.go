package model

import "fmt"

// IncompleteManifestError marks a manifest that indicates split streams
// but is missing the audio or video handle. Page-fatal, never retried.
type IncompleteManifestError struct {
	Missing string // "audio" or "video"
}

func (e *IncompleteManifestError) Error() string {
	return fmt.Sprintf("incomplete manifest: %s stream handle missing", e.Missing)
}

// TransportError is a stream download that failed after all fetch attempts.
type TransportError struct {
	Stream   string // logical stream name, e.g. "P01 video"
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s after %d attempts: %v", e.Stream, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MuxError is a failed muxer invocation. Mux failures are terminal for the
// page; a repeated attempt on the same inputs is assumed futile.
type MuxError struct {
	Output string
	Detail string // captured stderr
	Err    error
}

func (e *MuxError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("mux %s: %v: %s", e.Output, e.Err, e.Detail)
	}
	return fmt.Sprintf("mux %s: %v", e.Output, e.Err)
}

func (e *MuxError) Unwrap() error { return e.Err }

// FilesystemError is a folder or file creation failure. Video-fatal: it
// aborts the remaining pages of that video only.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error at %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
