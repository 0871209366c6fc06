// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for rankit.
//
// This package defines the interfaces ranking rules read the index through,
// decoupling query resolution from the storage engine:
//
//   - Reader: postings, facet values and level entries of one snapshot
//   - Snapshot: a Reader bound to a read transaction
//   - Snapshotter: opens snapshots
//   - IndexWriter: maintains postings, facets and levels
//
// # Constructor Return Type Pattern
//
// Public constructors of storage backends return these interfaces:
//
//	backend, err := badger.OpenBackend(path, false)
//	snap, err := backend.Snapshot(ctx)  // returns storage.Snapshot
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Serialization
//
// Bitmaps are stored in the portable roaring format. Settings and document
// records use MUS encoding. Floating point keys use an order preserving
// encoding so that a prefix scan visits values in ascending numeric order.
//
// # Thread Safety
//
// Snapshotter and IndexWriter implementations must be thread-safe. A
// Snapshot is used by a single search at a time.
package storage
