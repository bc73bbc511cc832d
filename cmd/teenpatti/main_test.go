package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/lox/teenpatti/internal/evaluator"
	"github.com/lox/teenpatti/internal/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHands(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		partial bool
		want    int
		wantErr string
	}{
		{name: "two hands", input: []string{"As Ks Qs", "10h 10d 2c"}, want: 2},
		{name: "comma separated", input: []string{"As,Ks,Qs"}, want: 1},
		{name: "too few cards", input: []string{"As Ks"}, wantErr: "want 3 cards"},
		{name: "too many cards", input: []string{"As Ks Qs Js"}, wantErr: "want 3 cards"},
		{name: "bad card", input: []string{"As Ks Xy"}, wantErr: "hand 1"},
		{name: "duplicate across hands", input: []string{"As Ks Qs", "As 2d 3d"}, wantErr: "already in hand 1"},
		{name: "unseen hand", input: []string{"As Ks", "-"}, partial: true, want: 2},
		{name: "dash needs partial", input: []string{"-"}, wantErr: "hand 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands, err := parseHands(tt.input, tt.partial)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, hands, tt.want)
		})
	}
}

func TestRenderEval(t *testing.T) {
	hands, err := parseHands([]string{"As Ah Ad", "2s 3s 4s", "Kc Kd 9h"}, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderEval(&buf, hands))
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Trio of Aces")
	assert.Contains(t, lines[1], "wins")
	assert.Contains(t, lines[2], "Pure Sequence")
	assert.Contains(t, lines[3], "Pair of Kings")
	assert.NotContains(t, lines[3], "wins")
}

func TestRenderEvalTie(t *testing.T) {
	hands, err := parseHands([]string{"As Kd 9c", "Ah Kc 9d"}, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderEval(&buf, hands))
	assert.Equal(t, 2, strings.Count(buf.String(), "tie"))
}

func TestRenderOdds(t *testing.T) {
	hands, err := parseHands([]string{"As Ah Ad", "-"}, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	renderOdds(&buf, hands, []evaluator.Equity{
		{Wins: 990, Ties: 0, Samples: 1000},
		{Wins: 10, Ties: 0, Samples: 1000},
	}, 0)
	out := buf.String()
	assert.Contains(t, out, "1000 samples")
	assert.Contains(t, out, "win  99.0%")
	assert.Contains(t, out, "? ? ?")
}

func TestRenderPayout(t *testing.T) {
	chips := []int{1010, 990}
	d, err := payout.Proportional(sdkmath.NewInt(200), 250, chips)
	require.NoError(t, err)

	var buf bytes.Buffer
	renderPayout(&buf, sdkmath.NewInt(200), 250, chips, d)
	out := buf.String()
	assert.Contains(t, out, "Pot 200, rake 250 bps")
	assert.Contains(t, out, "rake 5")
	assert.Contains(t, out, "dust")
}

func parseCLI(t *testing.T, args ...string) CLI {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test", "rake_bps": "250"})
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return cli
}

func TestCLIParses(t *testing.T) {
	cli := parseCLI(t, "payout", "200", "1010", "990")
	assert.Equal(t, "200", cli.Payout.Pot)
	assert.Equal(t, []int{1010, 990}, cli.Payout.Chips)
	assert.Equal(t, uint32(250), cli.Payout.RakeBps)

	cli = parseCLI(t, "server", "--config", "dev.hcl", "--port", "9000", "--seed", "7")
	assert.Equal(t, "dev.hcl", cli.Server.Config)
	assert.Equal(t, 9000, cli.Server.Port)
	require.NotNil(t, cli.Server.Seed)
	assert.Equal(t, int64(7), *cli.Server.Seed)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("Room cancelled", "room", "abcd1234")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"room":"abcd1234"`)

	_, err = newLogger(io.Discard, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(io.Discard, "info", "xml")
	assert.Error(t, err)
}
