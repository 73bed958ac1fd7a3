package scan

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Point is one sweep step: the swept value and the statistics measured at it.
type Point struct {
	Value     int
	Count     int
	Mean      float64
	Deviation float64
}

// Result is the scan of one channel, in sweep order.
type Result struct {
	Channel int
	Points  []Point
}

// Results maps channel numbers to their scan.
type Results map[int]Result

func (r Result) Values() []int {
	out := make([]int, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

func (r Result) Counts() []int {
	out := make([]int, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Count
	}
	return out
}

func (r Result) Means() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Mean
	}
	return out
}

func (r Result) Deviations() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Deviation
	}
	return out
}

// record is the serialized form of a Result: parallel lists per field.
type record struct {
	Values    []int     `json:"values" yaml:"values"`
	Counts    []int     `json:"counts" yaml:"counts"`
	Mean      []float64 `json:"mean" yaml:"mean"`
	Deviation []float64 `json:"deviation" yaml:"deviation"`
}

func (r Result) record() record {
	return record{
		Values:    r.Values(),
		Counts:    r.Counts(),
		Mean:      r.Means(),
		Deviation: r.Deviations(),
	}
}

func (r *Result) fromRecord(rec record) error {
	n := len(rec.Values)
	if len(rec.Counts) != n || len(rec.Mean) != n || len(rec.Deviation) != n {
		return fmt.Errorf("mismatched result lengths: values=%d counts=%d mean=%d deviation=%d",
			n, len(rec.Counts), len(rec.Mean), len(rec.Deviation))
	}
	r.Points = make([]Point, n)
	for i := range r.Points {
		r.Points[i] = Point{
			Value:     rec.Values[i],
			Count:     rec.Counts[i],
			Mean:      rec.Mean[i],
			Deviation: rec.Deviation[i],
		}
	}
	return nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.record())
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	return r.fromRecord(rec)
}

func (r Result) MarshalYAML() (interface{}, error) {
	return r.record(), nil
}

func (r *Result) UnmarshalYAML(value *yaml.Node) error {
	var rec record
	if err := value.Decode(&rec); err != nil {
		return err
	}
	return r.fromRecord(rec)
}

// Channels returns the channels of the results in ascending order.
func (rs Results) Channels() []int {
	channels := make([]int, 0, len(rs))
	for ch := range rs {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	return channels
}

// SetChannels copies each map key into its Result. Decoders only restore the keys.
func (rs Results) SetChannels() {
	for ch, r := range rs {
		r.Channel = ch
		rs[ch] = r
	}
}
