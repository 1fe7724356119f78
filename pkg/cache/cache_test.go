package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
)

func keyContract(t *testing.T, output string) *contracts.Contract {
	t.Helper()
	c, err := contracts.New("contract-1", "cached-app", contracts.ModelInfo{ModelName: "m"},
		[]contracts.Interaction{{InputText: "in", OutputText: output}})
	require.NoError(t, err)
	return c
}

func TestKeyDeterministic(t *testing.T) {
	c := keyContract(t, "out")

	a, err := Key(c, []string{"fairness", "content_safety"})
	require.NoError(t, err)
	b, err := Key(c, []string{"fairness", "content_safety"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "aicert:eval:"))
}

func TestKeyIgnoresEvaluatorOrder(t *testing.T) {
	c := keyContract(t, "out")

	a, err := Key(c, []string{"fairness", "content_safety"})
	require.NoError(t, err)
	b, err := Key(c, []string{"content_safety", "fairness"})
	require.NoError(t, err)

	assert.Equal(t, a, b, "the evaluator set is order-insensitive")
}

func TestKeyChangesWithContent(t *testing.T) {
	base, err := Key(keyContract(t, "out"), []string{"fairness"})
	require.NoError(t, err)

	changed, err := Key(keyContract(t, "different"), []string{"fairness"})
	require.NoError(t, err)
	assert.NotEqual(t, base, changed, "contract changes invalidate the key")

	otherSet, err := Key(keyContract(t, "out"), []string{"fairness", "accuracy"})
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSet, "evaluator set changes invalidate the key")
}
