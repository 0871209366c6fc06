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


// Package search ranks the documents of an index against a query tree.
//
// Ranking is a bucket sort: each ranking rule splits the documents handed
// to it into ordered buckets, and every bucket is refined by the next rule.
// The rules are:
//   - words: documents matching more query words first
//   - typo: documents matching with fewer typos first
//   - proximity: documents with query words closer together first
//   - attribute: documents matching in more important fields first
//   - sort: documents ordered by a numeric field
//   - geosort: documents ordered by distance to a point
//   - exactness: documents containing more words as typed first
//
// The Searcher opens a snapshot per search, restricts the documents with
// numeric filters and runs BucketSort over the configured rules.
package search
