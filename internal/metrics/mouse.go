package metrics

import (
	"math"
	"sort"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/tmt"
)

// calculateReleasePrecision is 1 minus the mean distance of accepted
// releases from the target centre, normalized by the node radius.
func calculateReleasePrecision(c tmt.Completion) MetricResult {
	centers := nodeCenters(c.Nodes)
	if c.Radius <= 0 {
		return MetricResult{}
	}

	sum := 0.0
	n := 0
	for _, a := range c.Attempts {
		if !a.Valid || a.To == nil {
			continue
		}
		target, ok := centers[*a.To]
		if !ok {
			continue
		}
		normalized := target.Distance(layout.Point{X: a.X, Y: a.Y}) / c.Radius
		if normalized > 1 {
			normalized = 1
		}
		sum += normalized
		n++
	}
	if n == 0 {
		return MetricResult{}
	}
	return MetricResult{Value: 1 - sum/float64(n), Calculated: true, SampleSize: n}
}

// calculatePathEfficiency compares the straight line between two connected
// nodes with the distance the pointer actually travelled.
func calculatePathEfficiency(c tmt.Completion) MetricResult {
	centers := nodeCenters(c.Nodes)

	total := 0.0
	n := 0
	for _, a := range c.Attempts {
		if !a.Valid || a.To == nil || a.Path <= 0 {
			continue
		}
		from, okFrom := centers[a.From]
		to, okTo := centers[*a.To]
		if !okFrom || !okTo {
			continue
		}
		direct := from.Distance(to)
		// Too short to say anything.
		if direct < 10 {
			continue
		}
		efficiency := direct / a.Path
		if efficiency > 1 {
			efficiency = 1
		}
		total += efficiency
		n++
	}
	if n == 0 {
		return MetricResult{}
	}
	return MetricResult{Value: total / float64(n), Calculated: true, SampleSize: n}
}

// calculatePaceVariability is the coefficient of variation of the time
// between consecutive connections, with IQR outlier removal.
func calculatePaceVariability(c tmt.Completion) MetricResult {
	var times []float64
	for _, a := range c.Attempts {
		if a.Valid {
			times = append(times, a.Elapsed)
		}
	}
	if len(times) < 4 {
		return MetricResult{SampleSize: max(len(times)-1, 0)}
	}

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		if dt := times[i] - times[i-1]; dt > 0 {
			intervals = append(intervals, dt)
		}
	}
	if len(intervals) < 3 {
		return MetricResult{SampleSize: len(intervals)}
	}

	if len(intervals) > 10 {
		sorted := append([]float64(nil), intervals...)
		sort.Float64s(sorted)
		q1 := sorted[len(sorted)/4]
		q3 := sorted[len(sorted)*3/4]
		iqr := q3 - q1
		lower, upper := q1-1.5*iqr, q3+1.5*iqr

		filtered := make([]float64, 0, len(intervals))
		for _, v := range intervals {
			if v >= lower && v <= upper {
				filtered = append(filtered, v)
			}
		}
		// Only use filtered values if we didn't filter too many
		if len(filtered) > len(intervals)/2 {
			intervals = filtered
		}
	}

	var sum float64
	for _, v := range intervals {
		sum += v
	}
	avg := sum / float64(len(intervals))

	var variance float64
	for _, v := range intervals {
		variance += math.Pow(v-avg, 2)
	}
	variance /= float64(len(intervals) - 1)

	return MetricResult{Value: math.Sqrt(variance) / avg, Calculated: true, SampleSize: len(intervals)}
}

func nodeCenters(nodes []layout.Node) map[layout.Label]layout.Point {
	centers := make(map[layout.Label]layout.Point, len(nodes))
	for _, n := range nodes {
		centers[n.Label] = n.Center()
	}
	return centers
}
