package stat

// InsufficientDataError is returned when a sample has too few observations to compute
// the requested statistic
type InsufficientDataError struct {
	Msg string
}

func (e InsufficientDataError) Error() string {
	return e.Msg
}

// InvalidSampleError is returned when a sample contains NaN or infinite values.  Index is
// the position of the first offending value, or -1 when the sample as a whole overflows.
type InvalidSampleError struct {
	Msg   string
	Index int
}

func (e InvalidSampleError) Error() string {
	return e.Msg
}

// MissingLimitError is returned when a specification limit required for an index is absent
type MissingLimitError struct {
	Msg string
}

func (e MissingLimitError) Error() string {
	return e.Msg
}

// InvalidLimitsError is returned when specification limits are non-finite or USL <= LSL
type InvalidLimitsError struct {
	Msg string
}

func (e InvalidLimitsError) Error() string {
	return e.Msg
}

// InvalidThresholdConfigError is returned when alert thresholds do not satisfy
// critical < warning < excellent
type InvalidThresholdConfigError struct {
	Msg string
}

func (e InvalidThresholdConfigError) Error() string {
	return e.Msg
}

// InvalidParameterError is returned for out of range tuning parameters such as the sigma
// multiplier or rule lengths
type InvalidParameterError struct {
	Msg string
}

func (e InvalidParameterError) Error() string {
	return e.Msg
}
