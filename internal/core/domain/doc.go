// Package domain defines the core business entities for Sercha Vision.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Folder: A collection folder representing one logical entity (an item)
//   - Object: An image file inside a folder, with its content signature
//   - SeenRecord: The last indexed signature per object of one folder
//   - ReindexStatus: The persisted round-robin cursor and last-run counters
//   - VectorEntry / QueryHit / EntityResult: Vector index payloads and results
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
