// Package errors provides the classified error primitives used across docvars.
//
// Errors carry a category (config, validation, filesystem, build, plugin, ...),
// a severity and a small context map. The fluent builder keeps construction
// consistent, and the CLI adapter maps categories to process exit codes.
//
// Example usage:
//
//	err := errors.WrapError(readErr, errors.CategoryFileSystem, "read source document").
//		WithContext("docname", docname).
//		Build()
package errors
