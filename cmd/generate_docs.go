package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inboxagent/inboxagent/internal/agent"
	"github.com/inboxagent/inboxagent/internal/tools"
	"github.com/inboxagent/inboxagent/internal/tools/mail"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate tool documentation",
		Long: `Generate markdown documentation for all available tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	// Doc generation only reads names and schemas; the tool handlers are
	// never invoked, so no credentials are needed.
	registry := tools.NewRegistry()
	toolset := mail.New(nil, nil, agent.NewCache())
	if err := tools.InstrumentAll(registry, nil, nil, toolset.Tools()); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	markdown := generateToolsMarkdown(registry.List())

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

// schemaDoc is the subset of JSON Schema the docs render.
type schemaDoc struct {
	Properties map[string]struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"properties"`
	Required []string `json:"required"`
}

func generateToolsMarkdown(toolList []tools.Tool) string {
	var sb strings.Builder

	sb.WriteString("# Tools Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools available when running inboxagent as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, t := range toolList {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", t.Name, t.Name))
	}
	sb.WriteString("\n")

	for _, t := range toolList {
		sb.WriteString(fmt.Sprintf("## %s\n\n", t.Name))
		sb.WriteString(t.Description)
		sb.WriteString("\n\n")

		var doc schemaDoc
		if err := json.Unmarshal(t.Schema, &doc); err != nil || len(doc.Properties) == 0 {
			sb.WriteString("This tool takes no parameters.\n\n")
			continue
		}

		required := make(map[string]bool, len(doc.Required))
		for _, name := range doc.Required {
			required[name] = true
		}

		names := make([]string, 0, len(doc.Properties))
		for name := range doc.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("| Parameter | Type | Required | Description |\n")
		sb.WriteString("|-----------|------|----------|-------------|\n")
		for _, name := range names {
			p := doc.Properties[name]
			req := "no"
			if required[name] {
				req = "yes"
			}
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s |\n",
				name, p.Type, req, p.Description))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
