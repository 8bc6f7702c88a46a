// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - FileStore: The remote collection (Google Drive): listings, downloads, resumable uploads
//   - MetadataStore: Versioned key-value store backing signatures, the folder registry and reindex status
//   - EmbeddingService: Turns image bytes or text into vectors
//   - VectorIndex: Upserts and queries vectors (local or REST backend)
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SchedulerStore: Task history for the background scheduler
//   - MetricsRecorder: Run and upload counters
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
