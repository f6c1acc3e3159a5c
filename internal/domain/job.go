package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImage     JobKind = "image"
	JobKindVideo     JobKind = "video"
	JobKindLongVideo JobKind = "long-video"
)

// Valid reports whether the kind is one of the supported categories.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindImage, JobKindVideo, JobKindLongVideo:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states. Transitions are forward-only:
// queued -> processing -> {done|failed}.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job encapsulates one generation request and its lifecycle.
type Job struct {
	ID              string
	OwnerID         string
	TeamID          string
	Kind            JobKind
	Status          JobStatus
	Provider        string
	InputJSON       []byte
	RequiredCredits int
	ResultRef       string
	Meta            JobMeta
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobMeta is the structured, mergeable metadata document attached to a job.
// Known fields are typed; anything else survives round trips through Extra so
// new job kinds can add fields without a schema migration.
type JobMeta struct {
	Progress    *int
	CurrentStep string
	Message     string
	ShotPlan    json.RawMessage
	TotalShots  int
	Country     string

	Extra map[string]json.RawMessage
}

const (
	metaKeyProgress    = "progress"
	metaKeyCurrentStep = "current_step"
	metaKeyMessage     = "message"
	metaKeyShotPlan    = "shot_plan"
	metaKeyTotalShots  = "total_shots"
	metaKeyCountry     = "country"
)

func (m JobMeta) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(m.Extra)+6)
	for k, v := range m.Extra {
		doc[k] = v
	}
	if m.Progress != nil {
		doc[metaKeyProgress], _ = json.Marshal(*m.Progress)
	}
	if m.CurrentStep != "" {
		doc[metaKeyCurrentStep], _ = json.Marshal(m.CurrentStep)
	}
	if m.Message != "" {
		doc[metaKeyMessage], _ = json.Marshal(m.Message)
	}
	if len(m.ShotPlan) > 0 {
		doc[metaKeyShotPlan] = m.ShotPlan
	}
	if m.TotalShots > 0 {
		doc[metaKeyTotalShots], _ = json.Marshal(m.TotalShots)
	}
	if m.Country != "" {
		doc[metaKeyCountry], _ = json.Marshal(m.Country)
	}
	return json.Marshal(doc)
}

func (m *JobMeta) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*m = JobMeta{}
		return nil
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	out := JobMeta{}
	for k, v := range doc {
		switch k {
		case metaKeyProgress:
			var p int
			if err := json.Unmarshal(v, &p); err == nil {
				out.Progress = &p
			}
		case metaKeyCurrentStep:
			_ = json.Unmarshal(v, &out.CurrentStep)
		case metaKeyMessage:
			_ = json.Unmarshal(v, &out.Message)
		case metaKeyShotPlan:
			out.ShotPlan = v
		case metaKeyTotalShots:
			_ = json.Unmarshal(v, &out.TotalShots)
		case metaKeyCountry:
			_ = json.Unmarshal(v, &out.Country)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[k] = v
		}
	}
	*m = out
	return nil
}

// Merge applies the non-empty fields of patch on top of m and returns the
// result. Progress never regresses: a lower percentage than the recorded one
// leaves the recorded value in place.
func (m JobMeta) Merge(patch JobMeta) JobMeta {
	out := m
	if patch.Progress != nil {
		if out.Progress == nil || *patch.Progress >= *out.Progress {
			p := *patch.Progress
			out.Progress = &p
		}
	}
	if patch.CurrentStep != "" {
		out.CurrentStep = patch.CurrentStep
	}
	if patch.Message != "" {
		out.Message = patch.Message
	}
	if len(patch.ShotPlan) > 0 {
		out.ShotPlan = patch.ShotPlan
	}
	if patch.TotalShots > 0 {
		out.TotalShots = patch.TotalShots
	}
	if patch.Country != "" {
		out.Country = patch.Country
	}
	if len(patch.Extra) > 0 {
		merged := make(map[string]json.RawMessage, len(out.Extra)+len(patch.Extra))
		for k, v := range out.Extra {
			merged[k] = v
		}
		for k, v := range patch.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}
