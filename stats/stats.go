// Package stats derives the small set of descriptive statistics the admin
// snapshot and the request_statistics UI command expose: mean and standard
// deviation of a robot's recent path speeds.
package stats

import (
	"github.com/montanaflynn/stats"
)

// Summary is the derived statistic pair for one robot's recent path.
type Summary struct {
	MeanSpeed   float64 `json:"mean_speed"`
	StddevSpeed float64 `json:"stddev_speed"`
	SampleCount int     `json:"sample_count"`
}

// Summarize computes mean and population standard deviation over speeds.
// An empty input yields a zero-valued Summary rather than an error, since
// "no samples yet" is an expected state for a newly connected robot.
func Summarize(speeds []float64) Summary {
	if len(speeds) == 0 {
		return Summary{}
	}

	data := stats.LoadRawData(speeds)

	mean, err := stats.Mean(data)
	if err != nil {
		mean = 0
	}
	stddev, err := stats.StandardDeviation(data)
	if err != nil {
		stddev = 0
	}

	return Summary{
		MeanSpeed:   mean,
		StddevSpeed: stddev,
		SampleCount: len(speeds),
	}
}
