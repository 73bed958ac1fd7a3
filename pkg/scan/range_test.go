package scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Steps(t *testing.T) {
	assert.Equal(t, []int{30, 31, 32, 33, 34}, Range{Min: 30, Max: 35, Step: 1}.Steps())
	assert.Equal(t, []int{0, 4, 8}, Range{Min: 0, Max: 10, Step: 4}.Steps())
	assert.Empty(t, Range{Min: 5, Max: 5, Step: 1}.Steps())
	assert.Empty(t, Range{Min: 0, Max: 5, Step: 0}.Steps())
	assert.Empty(t, Range{Min: 250, Max: math.MaxInt, Step: math.MaxInt / 2}.Steps())
	assert.Empty(t, Range{Min: -3, Max: 2, Step: 1}.Steps())
}

func TestRange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       Range
		wantErr error
	}{
		{name: "valid", r: Range{Min: 30, Max: 35, Step: 1}},
		{name: "full register", r: Range{Min: 0, Max: 256, Step: 1}},
		{name: "empty", r: Range{Min: 35, Max: 30, Step: 1}, wantErr: ErrEmptySweep},
		{name: "zero width", r: Range{Min: 30, Max: 30, Step: 1}, wantErr: ErrEmptySweep},
		{name: "zero step", r: Range{Min: 30, Max: 35, Step: 0}, wantErr: ErrInvalidRange},
		{name: "negative step", r: Range{Min: 30, Max: 35, Step: -1}, wantErr: ErrInvalidRange},
		{name: "negative min", r: Range{Min: -1, Max: 5, Step: 1}, wantErr: ErrInvalidRange},
		{name: "beyond register", r: Range{Min: 250, Max: 300, Step: 1}, wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("30:35:1")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 30, Max: 35, Step: 1}, r)
	assert.Equal(t, "30:35:1", r.String())

	r, err = ParseRange(" 0 : 64 : 8 ")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 0, Max: 64, Step: 8}, r)

	for _, s := range []string{"", "1:2", "a:2:1", "1:b:1", "1:2:c", "1:2:0", "5:1:1"} {
		_, err := ParseRange(s)
		assert.Error(t, err, s)
	}
}
