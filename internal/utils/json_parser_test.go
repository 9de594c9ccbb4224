package utils

import (
	"testing"
)

func TestParseAIJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "Pure JSON",
			input: `{"region": "Seoul", "limit": 30}`,
			want: map[string]interface{}{
				"region": "Seoul",
				"limit":  float64(30),
			},
		},
		{
			name:  "JSON in markdown code block",
			input: "```json\n" + `{"gender": "F", "age_bucket": "20s"}` + "\n```",
			want: map[string]interface{}{
				"gender":     "F",
				"age_bucket": "20s",
			},
		},
		{
			name:  "Untagged code block",
			input: "```\n" + `{"gender": "M"}` + "\n```",
			want:  map[string]interface{}{"gender": "M"},
		},
		{
			name:  "JSON with surrounding text",
			input: `Here is the parse: {"search_text": "likes {hiking}", "limit": 5} hope it helps.`,
			want: map[string]interface{}{
				"search_text": "likes {hiking}",
				"limit":       float64(5),
			},
		},
		{
			name:  "JSON with trailing comma",
			input: `{"region": "Busan", "limit": 40,}`,
			want: map[string]interface{}{
				"region": "Busan",
				"limit":  float64(40),
			},
		},
		{
			name:  "JSON with unquoted keys",
			input: `{region: "Daegu", limit: 35}`,
			want: map[string]interface{}{
				"region": "Daegu",
				"limit":  float64(35),
			},
		},
		{
			name:  "Single quoted values",
			input: `{'gender': 'F'}`,
			want:  map[string]interface{}{"gender": "F"},
		},
		{
			name:    "Empty string",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			input:   "not json at all",
			wantErr: true,
		},
		{
			name:    "Unclosed object",
			input:   `{"region": "Seoul"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			err := ParseAIJSON(tt.input, &got)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAIJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseAIJSON() got = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseAIJSON()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestFirstBalanced(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Simple object", input: `{"a": 1}`, want: `{"a": 1}`},
		{name: "Nested objects", input: `x {"a": {"b": 2}} y`, want: `{"a": {"b": 2}}`},
		{name: "Braces inside strings", input: `{"text": "Hello {world}"}`, want: `{"text": "Hello {world}"}`},
		{name: "Escaped quote", input: `{"text": "say \"}\""}`, want: `{"text": "say \"}\""}`},
		{name: "Array", input: `keywords: [1, 2, 3]`, want: `[1, 2, 3]`},
		{name: "Unbalanced", input: `{"a": 1`, want: ""},
		{name: "Nothing", input: `plain`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstBalanced(tt.input); got != tt.want {
				t.Errorf("firstBalanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Errorf("Truncate() = %q", got)
	}
}
