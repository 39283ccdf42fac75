package extract

import (
	"regexp"
	"strings"
)

// maskRule pairs a compiled pattern with its replacement tag.
type maskRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Masker replaces sensitive content in extracted text with bracketed
// tags before anything leaves the extraction stage.
type Masker struct {
	rules        []maskRule
	companyNames []*regexp.Regexp
}

// NewMasker creates a masker. companyNames are masked as
// [COMPANY_NAME] wherever they appear as whole words.
func NewMasker(companyNames []string) *Masker {
	rules := []maskRule{
		{regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`), "[EMAIL]"},
		{regexp.MustCompile(`\b(\+\d{1,2}\s?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`), "[PHONE]"},
		{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
		{regexp.MustCompile(`(?i)\b\d+\s+([A-Za-z0-9\s,.-]+\s+)(Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Circle|Cir|Way|Parkway|Pkwy|Highway|Hwy|Suite|Ste|Unit|#)\.?\s*,?\s*([A-Za-z\s]+,\s*[A-Z]{2}\s*\d{5}(-\d{4})?)\b`), "[ADDRESS]"},
		{regexp.MustCompile(`\b\d{5}(-\d{4})?\b`), "[ZIP]"},
		{regexp.MustCompile(`\b\d{5,10}\b`), "[POLICY_NUMBER]"},
		{regexp.MustCompile(`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{4}\b`), "[DATE]"},
		{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), "[DATE]"},
		{regexp.MustCompile(`\b\d+\s*(day|week|month|year)s?\b`), "[TIME_PERIOD]"},
	}

	var companies []*regexp.Regexp
	for _, name := range companyNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		companies = append(companies, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\b`))
	}

	return &Masker{rules: rules, companyNames: companies}
}

// Mask applies every masking rule to text and returns the result.
func (m *Masker) Mask(text string) string {
	for _, rule := range m.rules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	for _, company := range m.companyNames {
		text = company.ReplaceAllString(text, "[COMPANY_NAME]")
	}
	return text
}
