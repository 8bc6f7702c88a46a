// Package connectors holds the remote collection implementations of
// driven.FileStore. Google Drive lives under google/drive; shared Google
// plumbing (credentials, rate limiting, error mapping) under google.
package connectors
