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


package search

import "errors"

var (
	// ErrSnapshotterRequired is returned when a searcher is built without a snapshotter.
	ErrSnapshotterRequired = errors.New("snapshotter required")

	// ErrReaderRequired is returned when a search context is built without a reader.
	ErrReaderRequired = errors.New("reader required")

	// ErrSearchAborted is returned when the search context is canceled or
	// times out. It wraps the context error.
	ErrSearchAborted = errors.New("search aborted")

	// ErrInvalidState indicates a broken internal contract, such as a leaf
	// missing from the query mapping.
	ErrInvalidState = errors.New("invalid search state")

	// ErrUnknownRule is returned for a ranking rule name that cannot be parsed.
	ErrUnknownRule = errors.New("unknown ranking rule")

	// ErrGeoTargetRequired is returned when a geo sort has no target point.
	ErrGeoTargetRequired = errors.New("geo sort requires a target point")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")
)
