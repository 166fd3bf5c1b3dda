package domain

// Segment is a maximal run of consecutive samples sharing one potential-clip state.
type Segment struct {
	Start    int  // index of first sample
	End      int  // index of last sample (inclusive)
	Duration int  // number of samples
	Value    bool // potential-clip state of the run
}

// ClipState is the clipping classification of one sample.
type ClipState struct {
	Diff          float64 // normalized derivative, NaN when undefined
	PotentialClip bool
	Duration      int // length of the sample's segment
	IsClipping    bool
}
