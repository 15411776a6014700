// Package discovery runs asynchronous contact-discovery jobs: submit a
// search, poll until the provider finishes, then map its result set into
// contact candidates.
package discovery

import (
	"context"
	"time"

	"github.com/sells-group/leadfinder/internal/model"
)

// JobSpec is what gets submitted to a provider.
type JobSpec struct {
	Query      string
	MaxResults int
	Filters    Filters
}

// JobState is a provider status report.
type JobState struct {
	Status     model.JobStatus
	DatasetRef string
}

// JobProvider runs discovery jobs remotely.
type JobProvider interface {
	Name() string
	Submit(ctx context.Context, spec JobSpec) (string, error)
	Status(ctx context.Context, jobID string) (JobState, error)
	Results(ctx context.Context, job model.DiscoveryJob) ([]RawContact, error)
	Cancel(ctx context.Context, jobID string) error
}

// Clock abstracts time so polling can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}
