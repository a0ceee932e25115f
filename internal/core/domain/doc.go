// Package domain defines the core business entities for chatlogs.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawSubmission: Content as submitted, before any processing
//   - Fingerprint: The content-derived key of a log
//   - Policy: Normalised expiry and privacy settings
//   - ExtractedMessage: Intermediate records from text extraction
//   - Message: The canonical normalised message schema
//   - LogRecord and Page: The durable, paginated log document
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
