package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCompletionRequest_KeepsMostRecentSixTurns(t *testing.T) {
	var history []Turn
	for i := 0; i < 10; i++ {
		history = append(history, UserTurn(fmt.Sprintf("m%d", i)))
	}

	req := NewCompletionRequest("now", history, "preamble")
	require.Len(t, req.History, 6)
	require.Equal(t, "m4", req.History[0].Text)
	require.Equal(t, "m9", req.History[5].Text)
	require.Equal(t, 0.3, req.Temperature)
	require.Equal(t, 200, req.MaxTokens)

	req.History[0].Text = "mutated"
	require.Equal(t, "m4", history[4].Text)
}
