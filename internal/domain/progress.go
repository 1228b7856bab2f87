package domain

// ProgressFunc reports transfer progress of a single content handle.
// Values are percentages in [0,100], non-decreasing, ending at exactly 100 on success.
type ProgressFunc func(percent float64)
