package core

import (
	"errors"
	"testing"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings *Settings
		wantErr  error
	}{
		{
			name:     "default settings",
			settings: DefaultSettings(),
			wantErr:  nil,
		},
		{
			name:     "nil settings",
			settings: nil,
			wantErr:  ErrInvalidSettings,
		},
		{
			name: "empty field name",
			settings: &Settings{
				Fields: []Field{{ID: 0, Name: ""}},
			},
			wantErr: ErrEmptyFieldName,
		},
		{
			name: "duplicate name",
			settings: &Settings{
				Fields: []Field{{ID: 0, Name: "title"}, {ID: 1, Name: "title"}},
			},
			wantErr: ErrDuplicateField,
		},
		{
			name: "duplicate id",
			settings: &Settings{
				Fields: []Field{{ID: 3, Name: "title"}, {ID: 3, Name: "body"}},
			},
			wantErr: ErrDuplicateField,
		},
		{
			name: "typo lengths inverted",
			settings: &Settings{
				OneTypoWordLen: 9,
				TwoTypoWordLen: 5,
			},
			wantErr: ErrInvalidTypoLengths,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSettings(tt.settings)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSettings() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSettings() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"origin", 0, 0, false},
		{"north pole", 90, 0, false},
		{"antimeridian", 0, -180, false},
		{"latitude too large", 90.5, 0, true},
		{"longitude too small", 0, -180.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lng)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCoordinates(%v, %v) error = %v, wantErr %v", tt.lat, tt.lng, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("ValidateCoordinates() error = %v, want ErrInvalidCoordinates", err)
			}
		})
	}
}
