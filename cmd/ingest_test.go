package cmd

import "testing"

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two paragraphs",
			input: "First paragraph.\n\nSecond paragraph.",
			want:  []string{"First paragraph.", "Second paragraph."},
		},
		{
			name:  "windows line endings",
			input: "First.\r\n\r\nSecond.",
			want:  []string{"First.", "Second."},
		},
		{
			name:  "blank paragraphs dropped",
			input: "First.\n\n\n\n   \n\nSecond.",
			want:  []string{"First.", "Second."},
		},
		{
			name:  "whitespace only",
			input: "   \n\n  \t  ",
			want:  nil,
		},
		{
			name:  "single paragraph with internal newlines",
			input: "Line one\nline two",
			want:  []string{"Line one\nline two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitParagraphs(tt.input)
			if len(chunks) != len(tt.want) {
				t.Fatalf("chunks = %d, want %d", len(chunks), len(tt.want))
			}
			seen := map[string]bool{}
			for i, c := range chunks {
				if c.Text != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, c.Text, tt.want[i])
				}
				if c.ID == "" || seen[c.ID] {
					t.Errorf("chunk %d has missing or duplicate id %q", i, c.ID)
				}
				seen[c.ID] = true
			}
		})
	}
}
