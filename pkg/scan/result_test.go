package scan

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResults() Results {
	return Results{
		3: {Channel: 3, Points: []Point{
			{Value: 34, Count: 0, Mean: 0, Deviation: 0},
			{Value: 33, Count: 5, Mean: 300.5, Deviation: 1.25},
		}},
		12: {Channel: 12, Points: []Point{
			{Value: 0, Count: 7, Mean: 299, Deviation: 2},
		}},
	}
}

func TestResults_JSONShape(t *testing.T) {
	data, err := json.Marshal(sampleResults())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"3": {"values": [34, 33], "counts": [0, 5], "mean": [0, 300.5], "deviation": [0, 1.25]},
		"12": {"values": [0], "counts": [7], "mean": [299], "deviation": [2]}
	}`, string(data))
}

func TestResults_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(sampleResults())
	require.NoError(t, err)

	var got Results
	require.NoError(t, json.Unmarshal(data, &got))
	got.SetChannels()

	if diff := cmp.Diff(sampleResults(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResults_YAMLRoundTrip(t *testing.T) {
	data, err := yaml.Marshal(sampleResults())
	require.NoError(t, err)
	assert.Contains(t, string(data), "3:\n    values:")

	var got Results
	require.NoError(t, yaml.Unmarshal(data, &got))
	got.SetChannels()

	if diff := cmp.Diff(sampleResults(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResult_UnmarshalMismatchedLengths(t *testing.T) {
	var r Result
	err := json.Unmarshal([]byte(`{"values": [1, 2], "counts": [1], "mean": [0, 0], "deviation": [0, 0]}`), &r)
	assert.Error(t, err)
}

func TestResults_Channels(t *testing.T) {
	assert.Equal(t, []int{3, 12}, sampleResults().Channels())
	assert.Empty(t, Results{}.Channels())
}
