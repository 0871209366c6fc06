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

import (
	"fmt"
)

// ValidateSettings validates index Settings according to domain rules.
//
// Validation rules:
//   - Field names must not be empty
//   - Field names and ids must be unique
//   - OneTypoWordLen must not exceed TwoTypoWordLen
//
// NOT validated (interpreted by the search package):
//   - RankingRules
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings is nil", ErrInvalidSettings)
	}

	names := make(map[string]struct{}, len(settings.Fields))
	ids := make(map[FieldID]struct{}, len(settings.Fields))
	for _, f := range settings.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %w", ErrInvalidSettings, ErrEmptyFieldName)
		}
		if _, ok := names[f.Name]; ok {
			return fmt.Errorf("%w: %w: name %q", ErrInvalidSettings, ErrDuplicateField, f.Name)
		}
		if _, ok := ids[f.ID]; ok {
			return fmt.Errorf("%w: %w: id %d", ErrInvalidSettings, ErrDuplicateField, f.ID)
		}
		names[f.Name] = struct{}{}
		ids[f.ID] = struct{}{}
	}

	if settings.OneTypoWordLen > settings.TwoTypoWordLen {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, ErrInvalidTypoLengths)
	}

	return nil
}

// ValidateCoordinates checks a latitude and longitude pair.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, lng)
	}
	return nil
}
