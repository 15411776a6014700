package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/cost"
	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/internal/telemetry"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 300 * time.Second

	cancelTimeout = 15 * time.Second
)

// Result is a completed discovery search.
type Result struct {
	Job      model.DiscoveryJob       `json:"job"`
	Contacts []model.ContactCandidate `json:"contacts"`
	CostUSD  float64                  `json:"cost_usd"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRetry sets the retry policy for status polls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithMapping sets the field mapping applied to raw results.
func WithMapping(m FieldMapping) Option {
	return func(s *Service) { s.mapping = m }
}

// WithPollInterval sets the default poll interval used by Search.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithTimeout sets the default timeout budget used by Search.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithCalculator sets the pricing used for Result.CostUSD.
func WithCalculator(c *cost.Calculator) Option {
	return func(s *Service) { s.calc = c }
}

// Service submits and tracks discovery jobs against one provider.
type Service struct {
	provider     JobProvider
	mapping      FieldMapping
	clock        Clock
	retry        resilience.RetryConfig
	calc         *cost.Calculator
	pollInterval time.Duration
	timeout      time.Duration

	mu   sync.Mutex
	jobs map[string]*model.DiscoveryJob
}

// NewService returns a Service for provider.
func NewService(provider JobProvider, opts ...Option) *Service {
	s := &Service{
		provider:     provider,
		mapping:      ApolloScraperV1,
		clock:        RealClock,
		retry:        resilience.DefaultRetryConfig(),
		calc:         cost.NewCalculator(cost.DefaultRates()),
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		jobs:         make(map[string]*model.DiscoveryJob),
	}
	for _, o := range opts {
		o(s)
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = resilience.RetryLogger(provider.Name(), "status")
	}
	return s
}

// Submit starts a job and returns its ID.
func (s *Service) Submit(ctx context.Context, query string, maxResults int, filters Filters) (string, error) {
	if err := filters.Validate(query, maxResults); err != nil {
		return "", err
	}
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}

	id, err := s.provider.Submit(ctx, JobSpec{Query: query, MaxResults: maxResults, Filters: filters})
	if err != nil {
		return "", eris.Wrap(err, "discovery: submit")
	}

	s.mu.Lock()
	s.jobs[id] = model.NewDiscoveryJob(id, s.clock.Now())
	s.mu.Unlock()

	zap.L().Info("discovery: job submitted",
		zap.String("provider", s.provider.Name()),
		zap.String("job_id", id),
		zap.String("company", filters.CompanyName),
		zap.Int("max_results", maxResults),
	)
	return id, nil
}

// Job returns a snapshot of a tracked job.
func (s *Service) Job(jobID string) (model.DiscoveryJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return model.DiscoveryJob{}, false
	}
	return *j, true
}

// AwaitCompletion polls jobID every pollInterval until it reaches a
// terminal state or budget elapses. Results are only fetched once the job
// has Succeeded. When the budget runs out the remote job is cancelled on a
// best-effort basis and ErrDiscoveryTimedOut is returned.
func (s *Service) AwaitCompletion(ctx context.Context, jobID string, pollInterval, budget time.Duration) ([]model.ContactCandidate, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if budget <= 0 {
		budget = DefaultTimeout
	}
	log := zap.L().With(zap.String("provider", s.provider.Name()), zap.String("job_id", jobID))
	start := s.clock.Now()

	for {
		telemetry.DiscoveryPolls.Inc()
		state, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (JobState, error) {
			return s.provider.Status(ctx, jobID)
		})
		if err != nil {
			telemetry.DiscoveryJobs.WithLabelValues("poll_error").Inc()
			return nil, eris.Wrapf(err, "discovery: poll job %s", jobID)
		}

		job := s.advance(jobID, state)
		log.Debug("discovery: job status", zap.String("status", string(job.Status)))

		switch job.Status {
		case model.JobSucceeded:
			telemetry.DiscoveryJobs.WithLabelValues(string(job.Status)).Inc()
			raws, err := s.provider.Results(ctx, job)
			if err != nil {
				return nil, eris.Wrapf(err, "discovery: fetch results %s", jobID)
			}
			contacts := s.mapping.ApplyAll(raws)
			log.Info("discovery: job succeeded", zap.Int("contacts", len(contacts)))
			return contacts, nil
		case model.JobFailed, model.JobAborted:
			telemetry.DiscoveryJobs.WithLabelValues(string(job.Status)).Inc()
			return nil, &model.DiscoveryFailedError{JobID: jobID, Status: job.Status}
		case model.JobTimedOut:
			telemetry.DiscoveryJobs.WithLabelValues(string(job.Status)).Inc()
			return nil, eris.Wrapf(model.ErrDiscoveryTimedOut, "job %s timed out at provider", jobID)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "discovery: await job %s", jobID)
		case <-s.clock.After(pollInterval):
		}

		if elapsed := s.clock.Now().Sub(start); elapsed >= budget {
			s.expire(ctx, jobID)
			log.Warn("discovery: job exceeded budget", zap.Duration("elapsed", elapsed), zap.Duration("budget", budget))
			return nil, eris.Wrapf(model.ErrDiscoveryTimedOut, "job %s still running after %s", jobID, budget)
		}
	}
}

// Cancel aborts a job at the provider.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if err := s.provider.Cancel(ctx, jobID); err != nil {
		return eris.Wrapf(err, "discovery: cancel job %s", jobID)
	}
	s.advance(jobID, JobState{Status: model.JobAborted})
	return nil
}

// Search submits a job and waits for it with the service defaults. Once
// the job was submitted the returned Result is non-nil, even on error, so
// callers can see the job's final state.
func (s *Service) Search(ctx context.Context, query string, maxResults int, filters Filters) (*Result, error) {
	id, err := s.Submit(ctx, query, maxResults, filters)
	if err != nil {
		return nil, err
	}
	defer s.forget(id)

	contacts, err := s.AwaitCompletion(ctx, id, s.pollInterval, s.timeout)
	job, _ := s.Job(id)
	res := &Result{Job: job, Contacts: contacts, CostUSD: s.calc.Discovery(len(contacts))}
	return res, err
}

func (s *Service) forget(jobID string) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
}

// expire marks the job timed out and asks the provider to stop it. The
// cancel runs even if ctx is already done.
func (s *Service) expire(ctx context.Context, jobID string) {
	s.advance(jobID, JobState{Status: model.JobTimedOut})
	telemetry.DiscoveryJobs.WithLabelValues(string(model.JobTimedOut)).Inc()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := s.provider.Cancel(cctx, jobID); err != nil {
		zap.L().Warn("discovery: cancel after timeout failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// advance records a provider status against the tracked job and returns a
// snapshot. Backward reports are ignored.
func (s *Service) advance(jobID string, state JobState) model.DiscoveryJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		j = model.NewDiscoveryJob(jobID, s.clock.Now())
		s.jobs[jobID] = j
	}
	if err := j.Advance(state.Status, s.clock.Now()); err != nil {
		zap.L().Debug("discovery: ignoring status", zap.String("job_id", jobID), zap.Error(err))
	}
	if state.DatasetRef != "" {
		j.DatasetRef = state.DatasetRef
	}
	return *j
}
