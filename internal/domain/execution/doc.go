// Package execution holds the domain model for running whitelisted shell
// commands under a deadline: the whitelist check, per-command execution
// records, the batch that collects them, and the persistence port the batch
// is written through.
package execution
