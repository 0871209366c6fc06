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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidSettings indicates index Settings failed validation.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrEmptyFieldName indicates a field was declared without a name.
	ErrEmptyFieldName = errors.New("field name cannot be empty")

	// ErrDuplicateField indicates two fields share a name or an id.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrUnknownField indicates a field name is not declared in the settings.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidTypoLengths indicates the one-typo word length exceeds the two-typo one.
	ErrInvalidTypoLengths = errors.New("one typo word length must not exceed two typos word length")

	// ErrInvalidCoordinates indicates a latitude or longitude is out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)
