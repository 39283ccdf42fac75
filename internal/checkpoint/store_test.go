package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qagen/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func completedResult(docID, keyword string, variant domain.PromptVariant, aug int) domain.UnitResult {
	return domain.UnitResult{
		Unit: domain.Unit{
			DocID:             docID,
			Keyword:           keyword,
			Variant:           variant,
			AugmentationIndex: aug,
		},
		Pairs: []domain.QAPair{{
			Question:       "What is the waiting period based on [POLICY_DOC_001]?",
			Answer:         "Ninety days. (Source: [POLICY_DOC_001], Page 12)",
			SourceDocument: "[POLICY_DOC_001]",
			SourcePages:    []int{12},
		}},
		Attempts: 1,
	}
}

func TestMarkAndQueryCompleted(t *testing.T) {
	store := openTestStore(t)

	res := completedResult("doc_001", "Waiting Period", domain.VariantDefault, 0)

	done, err := store.IsCompleted(res.Unit.Key())
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkCompleted("run-1", res))

	done, err = store.IsCompleted(res.Unit.Key())
	require.NoError(t, err)
	assert.True(t, done)

	// The sibling variant is untouched.
	other := res.Unit
	other.Variant = domain.VariantAlternative
	done, err = store.IsCompleted(other.Key())
	require.NoError(t, err)
	assert.False(t, done)
}

func TestCompletedResultsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	a := completedResult("doc_001", "Waiting Period", domain.VariantDefault, 0)
	b := completedResult("doc_002", "Grace Period", domain.VariantAlternative, 1)
	require.NoError(t, store.MarkCompleted("run-1", a))
	require.NoError(t, store.MarkCompleted("run-1", b))

	results, err := store.CompletedResults()
	require.NoError(t, err)
	require.Len(t, results, 2)

	byKey := make(map[string]domain.UnitResult)
	for _, res := range results {
		byKey[res.Unit.Key()] = res
	}

	got := byKey[a.Unit.Key()]
	assert.Equal(t, a.Unit, got.Unit)
	require.Len(t, got.Pairs, 1)
	assert.Equal(t, a.Pairs[0].Question, got.Pairs[0].Question)
	assert.Equal(t, []int{12}, got.Pairs[0].SourcePages)
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	res := completedResult("doc_001", "Waiting Period", domain.VariantDefault, 0)
	require.NoError(t, store.MarkCompleted("run-1", res))
	require.NoError(t, store.MarkCompleted("run-2", res))

	results, err := store.CompletedResults()
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFailureManifest(t *testing.T) {
	store := openTestStore(t)

	rec := domain.FailureRecord{
		Unit: domain.Unit{
			DocID:             "doc_001",
			Keyword:           "Waiting Period",
			Variant:           domain.VariantDefault,
			AugmentationIndex: 0,
		},
		Kind:     domain.ErrorKindTransport,
		Message:  "endpoint unreachable",
		Attempts: 3,
		FailedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.RecordFailure(rec))

	failures, err := store.Failures()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, rec.Unit, failures[0].Unit)
	assert.Equal(t, domain.ErrorKindTransport, failures[0].Kind)
	assert.Equal(t, 3, failures[0].Attempts)

	// A later success for the same unit clears its failure row.
	require.NoError(t, store.MarkCompleted("run-2",
		completedResult("doc_001", "Waiting Period", domain.VariantDefault, 0)))
	failures, err = store.Failures()
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestOpenReusesExistingLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	store, err := Open(path)
	require.NoError(t, err)
	res := completedResult("doc_001", "Waiting Period", domain.VariantDefault, 0)
	require.NoError(t, store.MarkCompleted("run-1", res))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	done, err := reopened.IsCompleted(res.Unit.Key())
	require.NoError(t, err)
	assert.True(t, done)
}
