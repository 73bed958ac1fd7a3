package larpix

import (
	"testing"
	"time"

	"github.com/itohio/golarpix/pkg/config"
	"github.com/itohio/golarpix/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardChips(t *testing.T) {
	tests := []struct {
		name    string
		board   config.BoardConfig
		wantIDs []int
		wantLen int
	}{
		{name: "pcb-5", board: config.BoardConfig{Name: "pcb-5"}, wantIDs: []int{246, 245, 252, 243}, wantLen: 4},
		{name: "pcb-4", board: config.BoardConfig{Name: "pcb-4"}, wantIDs: []int{207, 63, 250, 249}, wantLen: 4},
		{name: "unknown board", board: config.BoardConfig{Name: "bench"}, wantIDs: []int{0, 1, 2}, wantLen: 256},
		{
			name:    "explicit chips",
			board:   config.BoardConfig{Name: "pcb-5", Chips: []config.ChipEntry{{ID: 7, IOChain: 2}}},
			wantIDs: []int{7},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chips := BoardChips(tt.board)
			require.Len(t, chips, tt.wantLen)
			for i, id := range tt.wantIDs {
				assert.Equal(t, id, chips[i].ID)
				assert.NotNil(t, chips[i].Config)
			}
		})
	}
}

func TestBoards(t *testing.T) {
	assert.Equal(t, []string{"pcb-4", "pcb-5"}, Boards())
}

func TestSelectChip(t *testing.T) {
	chips := BoardChips(config.BoardConfig{Name: "pcb-5"})

	chip, err := SelectChip(chips, 2)
	require.NoError(t, err)
	assert.Equal(t, 252, chip.ID)

	_, err = SelectChip(chips, 4)
	assert.Error(t, err)
	_, err = SelectChip(chips, -1)
	assert.Error(t, err)
}

func TestSilenceChips(t *testing.T) {
	m := NewMock(nil, timeutil.NewMockClock(time.Unix(0, 0)))
	chips := BoardChips(config.BoardConfig{Name: "pcb-4"})

	assert.ErrorIs(t, SilenceChips(m, chips), ErrNotConnected)

	require.NoError(t, m.Connect())
	require.NoError(t, SilenceChips(m, chips))
	for _, chip := range chips {
		state, err := m.State(chip)
		require.NoError(t, err)
		assert.Equal(t, MaxRegisterValue, state.GlobalThreshold)

		read, err := m.Run(chip, time.Second, "quiet")
		require.NoError(t, err)
		assert.Empty(t, read.Packets)
	}
}

func TestSetPhysics(t *testing.T) {
	m := NewMock(nil, timeutil.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, m.Connect())
	chip := NewChip(246, 0)

	require.NoError(t, SetPhysics(m, chip, 0))

	state, err := m.State(chip)
	require.NoError(t, err)
	assert.Equal(t, DefaultPhysicsThreshold, state.GlobalThreshold)
	assert.True(t, state.InternalBypass)
	assert.True(t, state.PeriodicReset)
}

func TestSetPhysics_OutOfRange(t *testing.T) {
	m := NewMock(nil, timeutil.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, m.Connect())
	chip := NewChip(246, 0)

	assert.ErrorIs(t, SetPhysics(m, chip, 300), ErrOutOfRange)

	state, err := m.State(chip)
	require.NoError(t, err)
	assert.Equal(t, NewChipConfig().GlobalThreshold, state.GlobalThreshold)
	assert.False(t, state.PeriodicReset)
}

func TestFlushStale(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	m := NewMock(nil, clock)
	require.NoError(t, m.Connect())
	chip := NewChip(246, 0)

	_, err := m.Run(chip, time.Millisecond, "earlier")
	require.NoError(t, err)

	require.NoError(t, FlushStale(m, chip, 2*time.Second))
	assert.Empty(t, m.Reads())
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Second}, clock.Sleeps())
}
