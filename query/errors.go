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


package query

import "errors"

var (
	// ErrUnknownQueryID is returned when a leaf id is absent from the query mapping.
	ErrUnknownQueryID = errors.New("query id absent from mapping")

	// ErrInvalidPhrase is returned when a phrase holds something other than leaves.
	ErrInvalidPhrase = errors.New("phrase must only hold query leaves")

	// ErrEmptyQuery is returned when a text holds no word.
	ErrEmptyQuery = errors.New("query holds no word")
)
