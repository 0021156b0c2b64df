package stats

import "testing"

func TestSummarizeEmptyIsZeroValue(t *testing.T) {
	s := Summarize(nil)
	if s.SampleCount != 0 || s.MeanSpeed != 0 || s.StddevSpeed != 0 {
		t.Fatalf("expected zero-valued summary for no samples, got %+v", s)
	}
}

func TestSummarizeComputesMean(t *testing.T) {
	s := Summarize([]float64{1, 2, 3})
	if s.SampleCount != 3 {
		t.Fatalf("expected 3 samples, got %d", s.SampleCount)
	}
	if s.MeanSpeed != 2 {
		t.Fatalf("expected mean 2, got %v", s.MeanSpeed)
	}
}
