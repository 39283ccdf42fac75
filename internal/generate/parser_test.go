package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qagen/internal/domain"
)

var testSuffixes = []string{"based on {policy_doc_name}?", "as per {policy_doc_name}?"}

func testUnit(variant domain.PromptVariant) domain.GenerationUnit {
	return domain.GenerationUnit{
		DocID:   "doc_001",
		Keyword: "Waiting Period",
		Variant: variant,
		Windows: []domain.Window{
			{DocID: "doc_001", Keyword: "Waiting Period", Pages: []int{12}},
		},
	}
}

func TestParseValidDefaultPairs(t *testing.T) {
	p := NewParser(testSuffixes)
	text := `Q: What is the waiting period based on [POLICY_DOC_001]?
A: The waiting period is [TIME_PERIOD]. (Source: [POLICY_DOC_001], Page 12)

Q: When does coverage begin as per [POLICY_DOC_001]?
A: Coverage begins after the waiting period ends. (Source: [POLICY_DOC_001], Page 12)`

	pairs, discarded, err := p.Parse(testUnit(domain.VariantDefault), text)
	require.NoError(t, err)
	assert.Equal(t, 0, discarded)
	require.Len(t, pairs, 2)

	assert.Equal(t, "What is the waiting period based on [POLICY_DOC_001]?", pairs[0].Question)
	assert.Equal(t, "[POLICY_DOC_001]", pairs[0].SourceDocument)
	assert.Equal(t, []int{12}, pairs[0].SourcePages)
}

func TestParseDiscardsInvalidPairs(t *testing.T) {
	p := NewParser(testSuffixes)

	// First pair lacks the question suffix, second lacks the citation,
	// third is valid.
	text := `Q: What is the waiting period?
A: Ninety days. (Source: [POLICY_DOC_001], Page 12)
Q: When does it start based on [POLICY_DOC_001]?
A: At hire.
Q: How long is it as per [POLICY_DOC_001]?
A: Ninety days. (Source: [POLICY_DOC_001], Page 12)`

	pairs, discarded, err := p.Parse(testUnit(domain.VariantDefault), text)
	require.NoError(t, err)
	assert.Equal(t, 2, discarded)
	require.Len(t, pairs, 1)
	assert.Contains(t, pairs[0].Question, "as per [POLICY_DOC_001]?")
}

func TestParseAlternativeVariant(t *testing.T) {
	p := NewParser(testSuffixes)

	// Alternative questions need only end with a question mark.
	text := `Q: How long is the waiting period?
A: Ninety days. (Source: [POLICY_DOC_001], Page 12)
Q: The waiting period is ninety days.
A: Yes. (Source: [POLICY_DOC_001], Page 12)`

	pairs, discarded, err := p.Parse(testUnit(domain.VariantAlternative), text)
	require.NoError(t, err)
	assert.Equal(t, 1, discarded)
	require.Len(t, pairs, 1)
	assert.Equal(t, "How long is the waiting period?", pairs[0].Question)
}

func TestParseMultilineAnswer(t *testing.T) {
	p := NewParser(testSuffixes)
	text := `Q: What is the waiting period based on [POLICY_DOC_001]?
A: The waiting period is ninety days
and begins on the date of hire. (Source: [POLICY_DOC_001], Page 12)`

	pairs, _, err := p.Parse(testUnit(domain.VariantDefault), text)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t,
		"The waiting period is ninety days and begins on the date of hire. (Source: [POLICY_DOC_001], Page 12)",
		pairs[0].Answer)
}

func TestParseIgnoresPreamble(t *testing.T) {
	p := NewParser(testSuffixes)
	text := `Here are the requested pairs:

Q: What is the waiting period based on [POLICY_DOC_001]?
A: Ninety days. (Source: [POLICY_DOC_001], Page 12)`

	pairs, _, err := p.Parse(testUnit(domain.VariantDefault), text)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}

func TestParseNoPairsIsFormatError(t *testing.T) {
	p := NewParser(testSuffixes)

	_, _, err := p.Parse(testUnit(domain.VariantDefault), "I cannot answer that.")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrorKindFormat))
}

func TestParseAllInvalidIsFormatError(t *testing.T) {
	p := NewParser(testSuffixes)
	text := `Q: What is the waiting period?
A: Ninety days.`

	_, discarded, err := p.Parse(testUnit(domain.VariantDefault), text)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrorKindFormat))
	assert.Equal(t, 1, discarded)
}

func TestParseMultiPageCitation(t *testing.T) {
	p := NewParser(testSuffixes)
	unit := testUnit(domain.VariantDefault)
	unit.Windows = []domain.Window{
		{DocID: "doc_001", Keyword: "Waiting Period", Pages: []int{12}},
		{DocID: "doc_001", Keyword: "Waiting Period", Pages: []int{14}},
	}

	text := `Q: What is the waiting period based on [POLICY_DOC_001]?
A: Ninety days. (Source: [POLICY_DOC_001], Page 12, 14)`

	pairs, _, err := p.Parse(unit, text)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, []int{12, 14}, pairs[0].SourcePages)
}
