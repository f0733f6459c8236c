package manta

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Media types negotiated with the service.
const (
	MediaTypeJSONStream = "application/x-json-stream"
	MediaTypeDirectory  = "application/json; type=directory"
	MediaTypeLink       = "application/json; type=link"
	MediaTypeJob        = "application/json; type=job"

	// Listings are served as the json stream type parameterised by kind.
	MediaTypeDirectoryStream = MediaTypeJSONStream + "; type=directory"
	MediaTypeJobStream       = MediaTypeJSONStream + "; type=job"
)

// EntryKind discriminates directory listing records.
type EntryKind string

const (
	KindObject    EntryKind = "object"
	KindDirectory EntryKind = "directory"
)

// IsValid reports whether k is a known listing record kind.
func (k EntryKind) IsValid() bool {
	switch k {
	case KindObject, KindDirectory:
		return true
	default:
		return false
	}
}

// Entry is one record of a directory listing.
type Entry struct {
	Kind        EntryKind `json:"type"`
	Name        string    `json:"name"`
	ModTime     time.Time `json:"mtime"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	MD5         string    `json:"md5,omitempty"`
	ETag        string    `json:"etag,omitempty"`
	Durability  int       `json:"durability,omitempty"`
}

// IsDirectory reports whether the entry is a directory.
func (e Entry) IsDirectory() bool { return e.Kind == KindDirectory }

// ObjectInfo describes an object or directory as reported by a HEAD request.
type ObjectInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Type      string `json:"type"`
	ETag      string `json:"etag,omitempty"`
	MD5       string `json:"md5,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// IsDirectory reports whether the info describes a directory.
func (i ObjectInfo) IsDirectory() bool { return i.Extension == "directory" }

// Job is the server side view of a compute job. It is fetched fresh on every call.
type Job struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Cancelled   bool      `json:"cancelled"`
	InputDone   bool      `json:"inputDone"`
	TimeCreated time.Time `json:"timeCreated"`
	TimeDone    time.Time `json:"timeDone,omitzero"`
	Phases      []Phase   `json:"phases"`
}

// PhaseType is the kind of work a job phase performs.
type PhaseType string

const (
	PhaseMap        PhaseType = "map"
	PhaseStorageMap PhaseType = "storage-map"
	PhaseReduce     PhaseType = "reduce"
)

// Phase is one stage of a job.
type Phase struct {
	Type   PhaseType `json:"type,omitempty" validate:"omitempty,oneof=map storage-map reduce"`
	Exec   string    `json:"exec" validate:"required"`
	Init   string    `json:"init,omitempty"`
	Assets []string  `json:"assets,omitempty" validate:"omitempty,dive,required"`
	Count  int       `json:"count,omitempty" validate:"min=0"`
	Memory int       `json:"memory,omitempty" validate:"min=0"`
}

// JobSpec is a fully specified job: an optional name and ordered phases.
type JobSpec struct {
	Name   string  `json:"name,omitempty"`
	Phases []Phase `json:"phases" validate:"required,min=1,dive"`
}

// JobDefinition is accepted wherever a job is created. It is implemented by
// Command, Pipeline and JobSpec only.
type JobDefinition interface {
	JobSpec() (JobSpec, error)
}

// Command is a job with a single map phase running one command.
type Command string

// JobSpec expands the command into a single phase job.
func (c Command) JobSpec() (JobSpec, error) {
	return JobSpec{Phases: []Phase{{Exec: string(c)}}}.JobSpec()
}

// Pipeline is a job with one map phase per command, in order.
type Pipeline []string

// JobSpec expands the pipeline into one phase per command.
func (p Pipeline) JobSpec() (JobSpec, error) {
	phases := make([]Phase, len(p))
	for i, cmd := range p {
		phases[i] = Phase{Exec: cmd}
	}
	return JobSpec{Phases: phases}.JobSpec()
}

// JobSpec validates the spec and returns a copy that shares no slices with j.
func (j JobSpec) JobSpec() (JobSpec, error) {
	if err := validate.Struct(&j); err != nil {
		return JobSpec{}, fmt.Errorf("%w: %w", ErrInvalidJob, describeValidation(err))
	}

	out := JobSpec{Name: j.Name, Phases: make([]Phase, len(j.Phases))}
	for i, ph := range j.Phases {
		if ph.Assets != nil {
			ph.Assets = append([]string(nil), ph.Assets...)
		}
		out.Phases[i] = ph
	}
	return out, nil
}

var validate = validator.New()

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("%s failed on %q", fe.Namespace(), fe.Tag())
}
