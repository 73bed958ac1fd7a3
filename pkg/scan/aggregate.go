package scan

import (
	"math"

	"github.com/itohio/golarpix/pkg/larpix"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises the packets of one measurement window.
type Stats struct {
	Count     int
	Mean      float64
	Deviation float64 // mean absolute deviation from Mean
}

// Aggregate reduces packets to their count, mean dataword and mean absolute
// deviation. An empty batch yields all zeros.
func Aggregate(packets []larpix.Packet) Stats {
	if len(packets) == 0 {
		return Stats{}
	}

	x := make([]float64, len(packets))
	for i, p := range packets {
		x[i] = float64(p.Dataword())
	}
	mean := stat.Mean(x, nil)

	var dev float64
	for _, v := range x {
		dev += math.Abs(v - mean)
	}

	return Stats{
		Count:     len(packets),
		Mean:      mean,
		Deviation: dev / float64(len(x)),
	}
}

func (s Stats) point(value int) Point {
	return Point{Value: value, Count: s.Count, Mean: s.Mean, Deviation: s.Deviation}
}
