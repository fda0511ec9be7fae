package compress

import (
	"context"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// Capability is the one external collaborator the compression engine
// depends on (spec.md §4.2): a call that takes text at a target
// compression level and returns a compressed rendering. The engine never
// knows which model answers, how it authenticates, or whether the call is
// a REST request or a subprocess -- internal/compress/openrouter and
// internal/compress/cccli are the two concrete implementations.
type Capability interface {
	Compress(ctx context.Context, text string, level session.CompressionLevel, useLargeModel bool) (string, error)
}
