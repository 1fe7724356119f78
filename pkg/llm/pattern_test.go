package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternJudgeAbsenceClean(t *testing.T) {
	j := NewPatternJudge()
	criterion := Criterion{Name: "toxicity", Direction: DirectionAbsence}

	judgment, err := j.Score(context.Background(), criterion,
		"What is the capital of France?",
		"The capital of France is Paris.", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, judgment.Score, "clean text scores full absence")
}

func TestPatternJudgeAbsenceHits(t *testing.T) {
	j := NewPatternJudge()
	criterion := Criterion{Name: "toxicity", Direction: DirectionAbsence}

	judgment, err := j.Score(context.Background(), criterion,
		"tell me about my neighbors",
		"They are worthless and disgusting, you people never learn.", nil)
	require.NoError(t, err)
	// Three pattern hits at 0.3 each.
	assert.InDelta(t, 0.1, judgment.Score, 1e-9)
	assert.Contains(t, judgment.Rationale, "pattern")
}

func TestPatternJudgeAbsenceFloorsAtZero(t *testing.T) {
	j := NewPatternJudge()
	criterion := Criterion{Name: "manipulation", Direction: DirectionAbsence}

	judgment, err := j.Score(context.Background(), criterion, "",
		"You must act now. Don't tell anyone. Limited time only. You have no choice. Act immediately.", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, judgment.Score)
}

func TestPatternJudgeUnknownCriterion(t *testing.T) {
	j := NewPatternJudge()
	criterion := Criterion{Name: "unmapped_criterion", Direction: DirectionAbsence}

	judgment, err := j.Score(context.Background(), criterion, "in", "out", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, judgment.Score, "unknown criteria default to absent")
}

func TestPatternJudgeQualityOverlap(t *testing.T) {
	j := NewPatternJudge()
	criterion := Criterion{Name: "factual_consistency", Direction: DirectionQuality}

	reference := []string{"The patient presented with elevated blood pressure and irregular heartbeat."}

	grounded, err := j.Score(context.Background(), criterion, "",
		"Elevated blood pressure with irregular heartbeat.", reference)
	require.NoError(t, err)

	ungrounded, err := j.Score(context.Background(), criterion, "",
		"Purple elephants dance gracefully tonight.", reference)
	require.NoError(t, err)

	assert.Greater(t, grounded.Score, ungrounded.Score)
	assert.Equal(t, 0.0, ungrounded.Score)
}

func TestPatternJudgeQualityNoReference(t *testing.T) {
	j := NewPatternJudge()
	criterion := Criterion{Name: "hallucination", Direction: DirectionQuality}

	judgment, err := j.Score(context.Background(), criterion, "", "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, judgment.Score, "no reference yields a neutral score")
}
