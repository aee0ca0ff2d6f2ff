package genai

import (
	"strings"
	"testing"
)

func TestParseStringArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "plain array",
			input: `["first insight", "second insight"]`,
			want:  []string{"first insight", "second insight"},
		},
		{
			name:  "json code fence",
			input: "```json\n[\"one\", \"two\"]\n```",
			want:  []string{"one", "two"},
		},
		{
			name:  "bare code fence",
			input: "```\n[\"one\"]\n```",
			want:  []string{"one"},
		},
		{
			name:  "surrounding whitespace",
			input: "\n\n  [\"a\", \"b\"]  \n",
			want:  []string{"a", "b"},
		},
		{
			name:  "blank entries dropped",
			input: `["keep", "", "  ", "also keep"]`,
			want:  []string{"keep", "also keep"},
		},
		{
			name:    "prose instead of json",
			input:   "Here are the insights: 1. foo 2. bar",
			wantErr: true,
		},
		{
			name:    "json object",
			input:   `{"insights": ["a"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStringArray(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseStringArray(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStringArray(%q) error = %v", tt.input, err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("parseStringArray(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
