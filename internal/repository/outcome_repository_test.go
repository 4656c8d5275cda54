package repository

import (
	"testing"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLastPerAttemptKeepsFinalEntry(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	batch := []model.Outcome{
		{AttemptID: a, Score: 10},
		{AttemptID: b, Score: 20},
		{AttemptID: a, Score: 30, Persisted: true},
	}

	got := lastPerAttempt(batch)

	require.Len(t, got, 2)
	require.Equal(t, a, got[0].AttemptID)
	require.InDelta(t, 30.0, got[0].Score, 1e-9)
	require.True(t, got[0].Persisted)
	require.Equal(t, b, got[1].AttemptID)
}
