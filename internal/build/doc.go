// Package build runs the docvars document pipeline.
//
// A build discovers the source documents, reads each one into memory, emits the
// source-read event so transforms can rewrite the raw text, renders the result
// to HTML and writes it below the output directory. Documents are processed by
// a bounded pool of workers; every document gets its own source container.
//
// Failures are returned as classified errors from internal/foundation/errors.
// The sentinel errors in this package identify the failing stage and can be
// matched with errors.Is.
package build
