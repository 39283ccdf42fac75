// Package prompt renders generation prompts from templates and context
// windows. Rendering is a pure function: identical inputs always
// produce the identical prompt string.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"qagen/internal/domain"
)

// knownPlaceholders is the template placeholder contract. A template
// referencing anything else is a configuration error, reported at
// startup rather than per unit.
var knownPlaceholders = map[string]bool{
	"keyword":         true,
	"policy_doc_name": true,
	"formatted_pages": true,
	"content":         true,
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// ValidateTemplate checks that a template references only known
// placeholders.
func ValidateTemplate(name, template string) error {
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !knownPlaceholders[match[1]] {
			return domain.ConfigurationError(
				fmt.Sprintf("template %q references unknown placeholder {%s}", name, match[1]), nil)
		}
	}
	return nil
}

// Renderer binds context windows and prompt templates into finished
// prompt strings.
type Renderer struct {
	templates map[domain.PromptVariant]string
}

// NewRenderer creates a renderer after validating both templates.
func NewRenderer(defaultTemplate, alternativeTemplate string) (*Renderer, error) {
	if err := ValidateTemplate("default", defaultTemplate); err != nil {
		return nil, err
	}
	if err := ValidateTemplate("alternative", alternativeTemplate); err != nil {
		return nil, err
	}
	return &Renderer{templates: map[domain.PromptVariant]string{
		domain.VariantDefault:     defaultTemplate,
		domain.VariantAlternative: alternativeTemplate,
	}}, nil
}

// Render produces the prompt for one generation unit. The unit's
// windows are concatenated in document order, each block tagged with
// its own page and line.
func (r *Renderer) Render(unit domain.GenerationUnit) string {
	template := r.templates[unit.Variant]

	replacer := strings.NewReplacer(
		"{keyword}", unit.Keyword,
		"{policy_doc_name}", unit.PolicyDocName(),
		"{formatted_pages}", FormatPages(unit.Pages()),
		"{content}", renderContent(unit.Windows),
	)
	return replacer.Replace(template)
}

// FormatPages renders a page span for citations: the sorted unique
// pages, capped at the first two, comma-joined (e.g. "12" or "12, 14").
func FormatPages(pages []int) string {
	unique := make([]int, 0, len(pages))
	seen := make(map[int]bool)
	for _, p := range pages {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	sort.Ints(unique)
	if len(unique) > 2 {
		unique = unique[:2]
	}

	parts := make([]string, len(unique))
	for i, p := range unique {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

func renderContent(windows []domain.Window) string {
	var b strings.Builder
	for _, w := range windows {
		for _, block := range w.Blocks {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[Page %d, Line %d] %s", block.Page, block.Line, block.Text)
		}
	}
	return b.String()
}
