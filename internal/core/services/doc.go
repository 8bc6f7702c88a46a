// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO; beyond domain and ports they only use
// small concurrency and identifier libraries (singleflight, uuid).
package services
