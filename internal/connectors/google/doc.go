// Package google provides shared infrastructure for the Google Drive connector.
//
// This package contains:
//   - Token sources built from a refresh token or a static access token
//   - A Drive service factory
//   - Mapping of Google API errors onto the domain error taxonomy
//   - Rate limiting to respect Drive quotas
//
// # Usage
//
//	ts, err := google.NewTokenSource(ctx, creds)
//	svc, err := google.NewDriveService(ctx, ts, "")
//
// # OAuth2 Scopes
//
// The collection is read and written with:
//   - https://www.googleapis.com/auth/drive
//
// Token acquisition happens outside this process; only the refresh token
// (or a short-lived access token) is configured.
package google
