package rollout

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a set of episode returns.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize returns the summary statistics of the passed returns; the zero Summary if empty.
func Summarize(returns []float64) Summary {
	if len(returns) == 0 {
		return Summary{}
	}

	summary := Summary{
		N:   len(returns),
		Min: floats.Min(returns),
		Max: floats.Max(returns),
	}
	if len(returns) == 1 {
		summary.Mean = returns[0]
		return summary
	}
	summary.Mean, summary.StdDev = stat.MeanStdDev(returns, nil)
	return summary
}

// AverageReturns averages the per-episode returns across workers: element i is the mean
// return of every worker's i-th episode. Sequences are cut to the shortest one.
func AverageReturns(returns [][]float64) []float64 {
	if len(returns) == 0 {
		return nil
	}

	numEpisodes := len(returns[0])
	for _, seq := range returns[1:] {
		if len(seq) < numEpisodes {
			numEpisodes = len(seq)
		}
	}

	averages := make([]float64, numEpisodes)
	column := make([]float64, len(returns))
	for episode := range averages {
		for worker, seq := range returns {
			column[worker] = seq[episode]
		}
		averages[episode] = stat.Mean(column, nil)
	}
	return averages
}

// Flatten concatenates every worker's returns.
func (res *Results) Flatten() []float64 {
	flat := make([]float64, 0, res.Episodes())
	for _, seq := range res.Returns {
		flat = append(flat, seq...)
	}
	return flat
}
