// Package memory provides in-memory implementations of the driven ports for
// tests, dry runs and ephemeral deployments. Nothing survives a restart.
package memory
