// Package process runs shell commands as OS processes isolated in their own
// process groups and signals those groups.
package process
