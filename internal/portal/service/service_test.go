package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckText(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		required  bool
		multiline bool
		want      string
		wantErr   bool
	}{
		{"trimmed", "  Jo Citizen ", true, false, "Jo Citizen", false},
		{"missing", "   ", true, false, "", true},
		{"empty optional", "", false, false, "", false},
		{"too long", "abcdefghijklmnopqrstuvwxyzabcdefghijklmno", false, false, "", true},
		{"crlf in single line", "Jo\r\nBcc: x@example.com", true, false, "", true},
		{"tab in single line", "Jo\tCitizen", true, false, "", true},
		{"nul", "Jo\x00", true, true, "", true},
		{"newlines in prose", "one\r\ntwo\tthree", true, true, "one\r\ntwo\tthree", false},
		{"escape in prose", "one\x1b[2J", true, true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkText("field", tt.in, 40, tt.required, tt.multiline)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
