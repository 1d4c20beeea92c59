package homepage

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleBookmarks = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go Docs:
        - abbr: GO
          href: https://pkg.go.dev/
- Social:
    - Reddit:
        - icon: reddit.png
          href: https://reddit.com/
          description: The front page of the internet
`

func TestLoaderLoad(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(yamlPath, []byte(sampleBookmarks), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	config, err := NewLoader(yamlPath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(config) != 2 {
		t.Fatalf("Load() returned %d groups, want 2", len(config))
	}
	gh := config[0]["Developer"][0]["Github"][0]
	if gh.Abbr != "GH" || gh.Href != "https://github.com/" {
		t.Errorf("Github entry = %+v", gh)
	}
	reddit := config[1]["Social"][0]["Reddit"][0]
	if reddit.Description != "The front page of the internet" {
		t.Errorf("Reddit description = %q", reddit.Description)
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	yamlContent := `---
- Self-hosted:
    - Gitea:
        - abbr: GT
          href: {{HOMEPAGE_VAR_GITEA_URL}}
`
	config, err := Parse([]byte(yamlContent))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := config[0]["Self-hosted"][0]["Gitea"][0].Href; got != "" {
		t.Errorf("templated href = %q, want empty", got)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/bookmarks.yaml").Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("- Developer: [unclosed")); err == nil {
		t.Error("Parse() with invalid yaml should return error")
	}
}

func TestStripTemplateVariablesFunc(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "single template variable",
			input:    []byte("url: {{HOMEPAGE_VAR_URL}}"),
			expected: "url: \"\"",
		},
		{
			name:     "two variables on one line",
			input:    []byte("{{A}}:{{B}}"),
			expected: `"":""`,
		},
		{
			name:     "no template variables",
			input:    []byte("plain text"),
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stripTemplateVariables(tt.input)
			if string(result) != tt.expected {
				t.Errorf("stripTemplateVariables() = %q, want %q", string(result), tt.expected)
			}
		})
	}
}
