// Package domain defines the core business entities for Relaysync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A contact or calendar event plus its sync metadata
//   - SyncState: Per (account, kind) synchronisation state
//   - Account: A connected mailbox account
//   - ProgressEvent: One element of a sync progress stream
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
