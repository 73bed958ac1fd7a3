package scan

// LocateOnset returns the last quiet threshold of a coarse scan: the value of
// the point just before the first point with a nonzero count, taken in sweep
// order.
//
// ErrEmptySweep is returned for a result without points, ErrNoOnset when no
// point saw a packet and ErrNoisyAtStart when the first point already did.
func LocateOnset(r Result) (int, error) {
	if len(r.Points) == 0 {
		return 0, ErrEmptySweep
	}
	for i, p := range r.Points {
		if p.Count == 0 {
			continue
		}
		if i == 0 {
			return 0, ErrNoisyAtStart
		}
		return r.Points[i-1].Value, nil
	}
	return 0, ErrNoOnset
}
