package team

import "strings"

// Outcome is the result of a team run: either the ordered segments of a
// successful run, or the reason a run failed.
type Outcome struct {
	RunID    string
	Segments []Segment
	Reason   string
	Err      error
}

func success(runID string, segments []Segment) *Outcome {
	return &Outcome{RunID: runID, Segments: segments}
}

func failure(runID, reason string, err error) *Outcome {
	return &Outcome{RunID: runID, Reason: reason, Err: err}
}

// OK reports whether the run succeeded.
func (o *Outcome) OK() bool {
	return o.Reason == "" && o.Err == nil
}

// Status is "success" or "error".
func (o *Outcome) Status() string {
	if o.OK() {
		return "success"
	}
	return "error"
}

// Text joins the rendered segments with newlines, in run order.
func (o *Outcome) Text() string {
	lines := make([]string, len(o.Segments))
	for i, s := range o.Segments {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}
