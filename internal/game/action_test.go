package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name   string
		amount int
		want   Action
	}{
		{"see", 0, See()},
		{"bet", 20, Bet(20)},
		{"chaal", 20, Bet(20)},
		{"fold", 0, Fold()},
		{"pack", 0, Fold()},
		{" Show ", 0, Show()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.name, tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAction("raise", 10)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "bet 40", Bet(40).String())
	assert.Equal(t, "fold", Fold().String())
	assert.Equal(t, "unknown", Action{}.String())
}
