package larpix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelta_Registers(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		want  []int
	}{
		{name: "empty", delta: Delta{}, want: nil},
		{name: "global threshold", delta: Fields(FieldGlobalThreshold), want: []int{32}},
		{name: "channel mask", delta: Fields(FieldChannelMask), want: []int{52, 53, 54, 55}},
		{name: "trims are de-duplicated", delta: TrimDelta(3, 3, 1), want: []int{1, 3}},
		{name: "out of range trim ignored", delta: TrimDelta(40), want: nil},
		{
			name:  "combined",
			delta: Delta{Fields: FieldTestPulseDAC | FieldGlobalThreshold | FieldTestMode, Trims: []int{5}},
			want:  []int{5, 32, 46, 47},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.delta.Registers())
		})
	}
}

func TestFullDelta(t *testing.T) {
	regs := FullDelta().Registers()
	assert.Len(t, regs, NumRegisters)
	for i, addr := range regs {
		assert.Equal(t, i, addr)
	}
}

func TestDelta_Has(t *testing.T) {
	d := Fields(FieldChannelMask | FieldGlobalThreshold)
	assert.True(t, d.Has(FieldChannelMask))
	assert.True(t, d.Has(FieldGlobalThreshold))
	assert.False(t, d.Has(FieldTestPulseEnable))
	assert.False(t, d.IsZero())
	assert.True(t, Delta{}.IsZero())
}

func TestDelta_String(t *testing.T) {
	assert.Equal(t, "none", Delta{}.String())
	assert.Equal(t, "global_threshold,channel_mask", Fields(FieldChannelMask|FieldGlobalThreshold).String())
	assert.Equal(t, "pixel_trim", TrimDelta(0).String())
}
