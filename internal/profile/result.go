package profile

type Step string

const (
	StepCoreFields     Step = "core_fields"
	StepSecretRotation Step = "secret_rotation"
	StepAvatar         Step = "avatar"
	StepArtisanUpsert  Step = "artisan_upsert"
	StepGalleryImage   Step = "gallery_image"
)

type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
	StatusFailure        Status = "failure"
)

// Applied records a step whose side effect is now visible.
// Index is the 1-based position of a gallery image and zero otherwise.
type Applied struct {
	Step  Step   `json:"step"`
	Index int    `json:"index,omitempty"`
	Ref   string `json:"ref,omitempty"`
}

type Failure struct {
	Step      Step   `json:"step"`
	Index     int    `json:"index,omitempty"`
	ErrorKind Kind   `json:"errorKind"`
	Message   string `json:"message"`
}

type Skipped struct {
	Step   Step   `json:"step"`
	Reason string `json:"reason"`
}

type Result struct {
	Status    Status    `json:"status"`
	Applied   []Applied `json:"applied"`
	Failures  []Failure `json:"failures"`
	Skipped   []Skipped `json:"skipped,omitempty"`
	Photo     string    `json:"photo,omitempty"`
	ArtisanID int64     `json:"artisanId,omitempty"`
}

func newResult() Result {
	return Result{
		Applied:  []Applied{},
		Failures: []Failure{},
	}
}

func (r *Result) apply(step Step, index int, ref string) {
	r.Applied = append(r.Applied, Applied{Step: step, Index: index, Ref: ref})
}

func (r *Result) fail(se *StepError) {
	r.Failures = append(r.Failures, Failure{
		Step:      se.Step,
		Index:     se.Index,
		ErrorKind: se.Kind,
		Message:   se.Err.Error(),
	})
}

func (r *Result) skip(step Step, reason string) {
	r.Skipped = append(r.Skipped, Skipped{Step: step, Reason: reason})
}

// terminate marks the whole run as failed; nothing after the failing step ran.
func (r *Result) terminate(se *StepError) Result {
	r.fail(se)
	r.Status = StatusFailure

	return *r
}

func (r *Result) finish() Result {
	if len(r.Failures) == 0 {
		r.Status = StatusSuccess
	} else {
		r.Status = StatusPartialFailure
	}

	return *r
}

func (r Result) Succeeded(step Step) bool {
	for _, a := range r.Applied {
		if a.Step == step {
			return true
		}
	}

	return false
}

// FailuresFor lists failures of step in the order they were recorded.
func (r Result) FailuresFor(step Step) []Failure {
	var out []Failure

	for _, f := range r.Failures {
		if f.Step == step {
			out = append(out, f)
		}
	}

	return out
}

func (r Result) WasSkipped(step Step) bool {
	for _, s := range r.Skipped {
		if s.Step == step {
			return true
		}
	}

	return false
}

// TerminalKind is the kind of the failure that stopped the run, or "" when it ran through.
func (r Result) TerminalKind() Kind {
	if r.Status != StatusFailure || len(r.Failures) == 0 {
		return ""
	}

	return r.Failures[0].ErrorKind
}
