package cmd

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxagent/inboxagent/internal/agent"
	"github.com/inboxagent/inboxagent/internal/tools"
	"github.com/inboxagent/inboxagent/internal/tools/mail"
)

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"quit", true},
		{"exit", true},
		{"q", true},
		{"QUIT", true},
		{"Exit", true},
		{"", false},
		{"quit please", false},
		{"search my inbox", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isExitCommand(tt.input), "input %q", tt.input)
	}
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes long", "yes\n", true},
		{"no", "n\n", false},
		{"no long", "no\n", false},
		{"retries until valid", "maybe\nY\n", true},
		{"eof is no", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			assert.Equal(t, tt.want, askYesNo(scanner, ""))
		})
	}
}

func TestGenerateToolsMarkdown(t *testing.T) {
	registry := tools.NewRegistry()
	toolset := mail.New(nil, nil, agent.NewCache())
	require.NoError(t, tools.InstrumentAll(registry, nil, nil, toolset.Tools()))

	md := generateToolsMarkdown(registry.List())

	assert.Contains(t, md, "# Tools Reference")
	assert.Contains(t, md, "## search_emails")
	assert.Contains(t, md, "## send_reply")
	assert.Contains(t, md, "| `query` | string | yes |")
}
