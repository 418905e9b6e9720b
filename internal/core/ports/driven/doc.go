// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - RemoteDirectory: Lists, pushes and removes records at a provider
//   - DirectoryFactory: Creates directories from account configuration
//   - RecordStore: Local record persistence with per-record versioning
//   - SyncStateStore: Per (account, kind) sync state with the begin guard
//   - AccountStore: Connected account persistence
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or directory package
package driven
