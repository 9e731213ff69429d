package regradar

import "errors"

// ErrRunInProgress is returned when RunOnce is called while another run is
// still active. Pipeline runs never overlap.
var ErrRunInProgress = errors.New("regradar: run already in progress")
