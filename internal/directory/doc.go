// Package directory wires provider-specific RemoteDirectory
// implementations to accounts.
//
// Each provider family lives in its own subpackage (google, microsoft,
// generic) and hides paging, rate limiting, field mapping and error
// classification behind the driven.RemoteDirectory port. The Factory in
// this package selects the implementation from the account's provider
// identifier.
package directory
