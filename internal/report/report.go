// Package report renders the markdown summary of a run: what was
// defined, what failed and why, and which headers did not parse.
package report

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorSnippet is one parse-error region for the report.
type ErrorSnippet struct {
	File    string
	Snippet string
}

// Failure is one item that could not be applied, with the
// environment's reason text.
type Failure struct {
	Name   string
	Reason string
}

// Data is everything the report renders.
type Data struct {
	// FunctionsOK are the names whose signatures were redefined.
	FunctionsOK []string
	// FunctionsFailed are signature redefinitions the environment
	// rejected.
	FunctionsFailed []Failure
	// TypesOK are the names whose real definitions were applied.
	TypesOK []string
	// TypesFailed are definitions the environment rejected.
	TypesFailed []Failure
	// BlankStubs are placeholder names left empty in the environment.
	BlankStubs []string
	// Skipped are already-defined names left untouched.
	Skipped []string
	// ErrorFiles are the headers that contained parse errors.
	ErrorFiles []string
	// Errors are the parse-error regions themselves.
	Errors []ErrorSnippet
	// MaxErrorSnippets caps the verbatim snippet table. Zero or more
	// snippets than the cap collapses the section to file names only.
	MaxErrorSnippets int
}

// Build renders the report as markdown.
func Build(d Data) string {
	var b strings.Builder
	b.WriteString("# Header import report\n")

	b.WriteString("\n## Functions\n\n")
	if len(d.FunctionsOK) == 0 && len(d.FunctionsFailed) == 0 {
		b.WriteString("No function signatures were changed.\n")
	}
	if len(d.FunctionsOK) > 0 {
		fmt.Fprintf(&b, "%d signature(s) redefined:\n\n", len(d.FunctionsOK))
		for _, name := range sorted(d.FunctionsOK) {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
	}
	if len(d.FunctionsFailed) > 0 {
		b.WriteString("\nFailed to redefine:\n\n")
		writeFailureTable(&b, "Function", d.FunctionsFailed)
	}

	b.WriteString("\n## Types\n\n")
	if len(d.TypesOK) == 0 && len(d.TypesFailed) == 0 {
		b.WriteString("No types were defined.\n")
	}
	if len(d.TypesOK) > 0 {
		fmt.Fprintf(&b, "%d type(s) defined:\n\n", len(d.TypesOK))
		for _, name := range sorted(d.TypesOK) {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
	}
	if len(d.TypesFailed) > 0 {
		b.WriteString("\nFailed to define:\n\n")
		writeFailureTable(&b, "Type", d.TypesFailed)
	}
	if len(d.Skipped) > 0 {
		fmt.Fprintf(&b, "\n%d already-defined type(s) left untouched:\n\n", len(d.Skipped))
		for _, name := range sorted(d.Skipped) {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
	}
	if len(d.BlankStubs) > 0 {
		b.WriteString("\nReferenced but never defined, left as empty placeholders:\n\n")
		for _, name := range sorted(d.BlankStubs) {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
	}

	if len(d.ErrorFiles) > 0 {
		b.WriteString("\n## Parse errors\n\n")
		fmt.Fprintf(&b, "%d file(s) contained regions the parser could not resolve. "+
			"Declarations inside those regions were not extracted.\n\n", len(d.ErrorFiles))
		for _, file := range d.ErrorFiles {
			fmt.Fprintf(&b, "- `%s`\n", file)
		}
		if n := len(d.Errors); n > 0 && n <= d.MaxErrorSnippets {
			b.WriteString("\n| File | Snippet |\n|---|---|\n")
			for _, e := range d.Errors {
				fmt.Fprintf(&b, "| `%s` | %s |\n", Sanitize(e.File), Sanitize(e.Snippet))
			}
		}
	}

	return b.String()
}

func writeFailureTable(b *strings.Builder, label string, failures []Failure) {
	fmt.Fprintf(b, "| %s | Reason |\n|---|---|\n", label)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })
	for _, f := range failures {
		fmt.Fprintf(b, "| `%s` | %s |\n", Sanitize(f.Name), Sanitize(f.Reason))
	}
}

// Sanitize makes arbitrary source or error text safe inside a markdown
// table cell: newlines collapse to sentence breaks, pipes are removed,
// angle brackets are escaped so raw C does not read as HTML.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	s = strings.Join(kept, ". ")
	s = strings.ReplaceAll(s, "|", "")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func sorted(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
