// Package memory federates associative memory storage across several
// backends.
//
// One backend is configured as primary and is authoritative for
// read-after-write. Every other backend is a replica:
//   - Store and Delete hit the primary synchronously, then every replica
//     concurrently. Replica failures are logged and tolerated.
//   - Retrieve tries the primary first, then the rest in registration order.
//   - Search fans out to every backend, tags each hit with its source,
//     drops duplicate content and ranks by score.
//
// Backends:
//   - store/chromem: embedded vector search (chromem-go)
//   - store/sqlite: durable key/value with substring search (modernc sqlite)
//   - store/ristretto: bounded in-process cache (ristretto)
//
// Embedders turn text into vectors for the chromem backend; see
// embedder/hashing for the offline feature-hashing embedder.
package memory
