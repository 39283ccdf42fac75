package generate

import (
	"fmt"
	"strings"

	"qagen/internal/domain"
	"qagen/internal/prompt"
)

// Parser turns raw completions into validated QA pairs. Pairs that
// violate the citation contract are dropped and counted, not repaired.
type Parser struct {
	citationSuffixes []string
}

// NewParser creates a parser. citationSuffixes are the suffix phrase
// templates a default-variant question must end with, each containing
// the {policy_doc_name} placeholder.
func NewParser(citationSuffixes []string) *Parser {
	return &Parser{citationSuffixes: citationSuffixes}
}

// Parse extracts Q:/A: pairs from a completion and validates them
// against the unit's citation contract. It returns the valid pairs and
// the number discarded. A completion with no valid pair is a format
// error, which the orchestrator retries like any other failure.
func (p *Parser) Parse(unit domain.GenerationUnit, text string) ([]domain.QAPair, int, error) {
	raw := scanPairs(text)
	if len(raw) == 0 {
		return nil, 0, domain.FormatError("completion contains no question-answer pairs", nil)
	}

	docName := unit.PolicyDocName()
	pages := unit.Pages()
	citation := fmt.Sprintf("(Source: %s, Page %s)", docName, prompt.FormatPages(pages))

	var pairs []domain.QAPair
	discarded := 0
	for _, rp := range raw {
		if !p.validPair(unit.Variant, docName, citation, rp) {
			discarded++
			continue
		}
		pairs = append(pairs, domain.QAPair{
			Question:       rp.question,
			Answer:         rp.answer,
			SourceDocument: docName,
			SourcePages:    pages,
		})
	}

	if len(pairs) == 0 {
		return nil, discarded, domain.FormatError(
			fmt.Sprintf("all %d question-answer pairs failed validation", discarded), nil)
	}
	return pairs, discarded, nil
}

type rawPair struct {
	question string
	answer   string
}

// scanPairs walks the completion line by line. A "Q:" line opens a
// pair, an "A:" line completes it, and other non-empty lines continue
// whichever side is open. Anything before the first "Q:" is ignored.
func scanPairs(text string) []rawPair {
	var pairs []rawPair
	var question, answer strings.Builder
	inAnswer := false
	open := false

	flush := func() {
		q := strings.TrimSpace(question.String())
		a := strings.TrimSpace(answer.String())
		if q != "" && a != "" {
			pairs = append(pairs, rawPair{question: q, answer: a})
		}
		question.Reset()
		answer.Reset()
		inAnswer = false
		open = false
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case hasPrefixFold(trimmed, "Q:"):
			if open {
				flush()
			}
			open = true
			inAnswer = false
			question.WriteString(strings.TrimSpace(trimmed[2:]))
		case hasPrefixFold(trimmed, "A:"):
			if !open {
				continue
			}
			inAnswer = true
			answer.WriteString(strings.TrimSpace(trimmed[2:]))
		case trimmed == "":
			continue
		case open && inAnswer:
			answer.WriteString(" " + trimmed)
		case open:
			question.WriteString(" " + trimmed)
		}
	}
	if open {
		flush()
	}
	return pairs
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func (p *Parser) validPair(variant domain.PromptVariant, docName, citation string, rp rawPair) bool {
	if !strings.Contains(rp.answer, citation) {
		return false
	}

	switch variant {
	case domain.VariantAlternative:
		return strings.HasSuffix(rp.question, "?")
	default:
		for _, suffix := range p.citationSuffixes {
			expanded := strings.ReplaceAll(suffix, "{policy_doc_name}", docName)
			if strings.HasSuffix(strings.ToLower(rp.question), strings.ToLower(expanded)) {
				return true
			}
		}
		return false
	}
}
