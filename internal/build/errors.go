package build

import "errors"

// Sentinel stage errors. They are always wrapped with the document context.
var (
	ErrDiscovery = errors.New("docvars: discovery error")
	ErrRead      = errors.New("docvars: read error")
	ErrRender    = errors.New("docvars: render error")
	ErrWrite     = errors.New("docvars: write error")
)
