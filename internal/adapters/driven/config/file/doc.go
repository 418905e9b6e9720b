// Package file provides a TOML file-based implementation of the ConfigStore port.
//
// Configuration is stored at ~/.relaysync/config.toml by default. Nested TOML
// tables are flattened to dot-notation keys, so [sync] interval_minutes = 15
// is read as "sync.interval_minutes". Writes persist immediately with 0600
// permissions.
package file
