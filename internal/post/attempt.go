package post

import "time"

// Phase is the publish protocol state of a PublishAttempt. Phases move
// strictly forward; failed is reachable from any non-terminal phase.
type Phase string

const (
	PhasePending          Phase = "pending"
	PhaseMediaStaged      Phase = "media_staged"
	PhaseMediaProcessing  Phase = "media_processing"
	PhaseMediaReady       Phase = "media_ready"
	PhaseContainerCreated Phase = "container_created"
	PhasePublished        Phase = "published"
	PhaseFailed           Phase = "failed"
)

// phaseOrder drives forward-only transition checks.
var phaseOrder = map[Phase]int{
	PhasePending:          0,
	PhaseMediaStaged:      1,
	PhaseMediaProcessing:  2,
	PhaseMediaReady:       3,
	PhaseContainerCreated: 4,
	PhasePublished:        5,
}

// PhotoState is the per-photo progress within a publish attempt.
type PhotoState string

const (
	PhotoStagePending PhotoState = ""
	PhotoStaged       PhotoState = "staged"
	PhotoProcessing   PhotoState = "processing"
	PhotoReady        PhotoState = "media_ready"
	PhotoError        PhotoState = "error"
)

// PhotoProgress tracks one photo's progress through staging and external
// processing. Indexed in publish order, mirroring Post.Photos.
type PhotoProgress struct {
	Filename  string     `json:"filename" dynamodbav:"filename"`
	HostedURL string     `json:"hostedUrl,omitempty" dynamodbav:"hostedUrl,omitempty"`
	MediaID   string     `json:"mediaId,omitempty" dynamodbav:"mediaId,omitempty"`
	State     PhotoState `json:"state,omitempty" dynamodbav:"state,omitempty"`
}

// PublishAttempt is the single source of truth for resume logic: which
// photos have confirmed external handles, whether the carousel container
// exists, and whether a publish call has already been issued. Created on
// the first publish attempt, retained (not reset) across retries, and
// discarded only on terminal success.
type PublishAttempt struct {
	PostID string `json:"postId" dynamodbav:"-"`
	Phase  Phase  `json:"phase" dynamodbav:"phase"`

	Photos []PhotoProgress `json:"photos" dynamodbav:"photos"`

	// ContainerID is the carousel (or single-post) container assembled
	// from the ready photo handles.
	ContainerID string `json:"containerId,omitempty" dynamodbav:"containerId,omitempty"`

	// PublishIssuedAt marks that a publish call was sent, set before the
	// request goes out. Publish is the one step that is not safely
	// repeatable: a resume that finds this set must check the container
	// for evidence of publication before re-issuing.
	PublishIssuedAt *time.Time `json:"publishIssuedAt,omitempty" dynamodbav:"publishIssuedAt,omitempty"`

	// PollAttempts counts media-processing status polls across runs so a
	// resumed attempt keeps its bounded budget.
	PollAttempts int `json:"pollAttempts" dynamodbav:"pollAttempts"`

	// FailedPhoto is the 1-based index of the photo that failed external
	// processing, 0 when none.
	FailedPhoto int    `json:"failedPhoto,omitempty" dynamodbav:"failedPhoto,omitempty"`
	LastError   string `json:"lastError,omitempty" dynamodbav:"lastError,omitempty"`

	StartedAt time.Time `json:"startedAt" dynamodbav:"startedAt"`
}

// NewAttempt creates a fresh attempt record for a post, seeding per-photo
// progress with any URLs already cached on the photo refs.
func NewAttempt(p *Post, now time.Time) *PublishAttempt {
	a := &PublishAttempt{
		PostID:    p.ID,
		Phase:     PhasePending,
		Photos:    make([]PhotoProgress, len(p.Photos)),
		StartedAt: now,
	}
	for i, ph := range p.Photos {
		a.Photos[i] = PhotoProgress{Filename: ph.Filename, HostedURL: ph.HostedURL}
		if ph.HostedURL != "" {
			a.Photos[i].State = PhotoStaged
		}
	}
	return a
}

// Advance moves the attempt to the next phase. Only the immediate next
// phase is accepted; anything else fails with InvalidTransitionError.
// Backward moves never succeed.
func (a *PublishAttempt) Advance(to Phase) error {
	cur, okCur := phaseOrder[a.Phase]
	next, okNext := phaseOrder[to]
	if !okCur || !okNext || next != cur+1 {
		return &InvalidTransitionError{From: string(a.Phase), To: string(to)}
	}
	a.Phase = to
	return nil
}

// Fail moves the attempt to the terminal failed phase from any
// non-terminal phase, recording the error.
func (a *PublishAttempt) Fail(reason string) error {
	if a.Phase == PhasePublished || a.Phase == PhaseFailed {
		return &InvalidTransitionError{From: string(a.Phase), To: string(PhaseFailed)}
	}
	a.Phase = PhaseFailed
	a.LastError = reason
	return nil
}

// Terminal reports whether the attempt reached published or failed.
func (a *PublishAttempt) Terminal() bool {
	return a.Phase == PhasePublished || a.Phase == PhaseFailed
}

// StagedCount returns how many photos already have a hosted URL.
func (a *PublishAttempt) StagedCount() int {
	n := 0
	for _, p := range a.Photos {
		if p.HostedURL != "" {
			n++
		}
	}
	return n
}

// AllReady reports whether every photo handle reached its terminal ready state.
func (a *PublishAttempt) AllReady() bool {
	for _, p := range a.Photos {
		if p.State != PhotoReady {
			return false
		}
	}
	return len(a.Photos) > 0
}
