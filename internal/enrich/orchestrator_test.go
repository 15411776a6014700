package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/credit"
	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/inference"
	"github.com/sells-group/leadfinder/internal/leadfinder"
	"github.com/sells-group/leadfinder/internal/model"
)

// fakeDiscoverer returns canned contacts per company; failing companies
// return an error after the job was submitted.
type fakeDiscoverer struct {
	mu       sync.Mutex
	contacts map[string][]model.ContactCandidate
	failing  map[string]bool
	calls    []discovery.Filters
}

func (d *fakeDiscoverer) Search(_ context.Context, _ string, maxResults int, f discovery.Filters) (*discovery.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, f)
	d.mu.Unlock()

	job := model.DiscoveryJob{ID: "job-" + f.CompanyName, Status: model.JobSucceeded}
	if d.failing[f.CompanyName] {
		job.Status = model.JobFailed
		return &discovery.Result{Job: job}, &model.DiscoveryFailedError{JobID: job.ID, Status: model.JobFailed}
	}
	contacts := d.contacts[f.CompanyName]
	if len(contacts) > maxResults {
		contacts = contacts[:maxResults]
	}
	cost := 0.0
	if len(contacts) > 0 {
		cost = 1.20
	}
	return &discovery.Result{Job: job, Contacts: contacts, CostUSD: cost}, nil
}

// fakeFinder returns a generic address for every domain except those
// listed in misses or errs.
type fakeFinder struct {
	mu     sync.Mutex
	misses map[string]bool
	errs   map[string]error
	reqs   []inference.Request
}

func (f *fakeFinder) FindAnyEmail(_ context.Context, req inference.Request) (*model.EmailCandidate, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if err := f.errs[req.Domain]; err != nil {
		return nil, err
	}
	if f.misses[req.Domain] {
		return nil, nil
	}
	return &model.EmailCandidate{
		Email:      "info@" + req.Domain,
		Type:       model.EmailGeneric,
		Confidence: 60,
		Status:     model.StatusUnknown,
		Source:     model.SourceInference,
	}, nil
}

func testLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			ExternalID: fmt.Sprintf("p%d", i),
			Name:       fmt.Sprintf("Biz %d", i),
			Domain:     fmt.Sprintf("biz%d.com", i),
			Address:    "Austin, TX",
		}
	}
	return leads
}

func contact(first, last, title, email string, status model.EmailStatus) model.ContactCandidate {
	return model.ContactCandidate{
		FirstName:   first,
		LastName:    last,
		FullName:    first + " " + last,
		Title:       title,
		Email:       email,
		EmailStatus: status,
		Company:     model.CompanySummary{Size: "11-50", Industry: "Dental", LinkedInURL: "https://linkedin.com/company/biz"},
	}
}

func TestEnrich_OneDiscoveryFailureDegradesOnlyThatLead(t *testing.T) {
	leads := testLeads(10)
	d := &fakeDiscoverer{
		contacts: map[string][]model.ContactCandidate{},
		failing:  map[string]bool{"Biz 3": true},
	}
	for _, l := range leads {
		d.contacts[l.Name] = []model.ContactCandidate{
			contact("Jane", "Doe", "Owner", "jane@"+l.Domain, model.EmailVerified),
		}
	}
	o := New(WithDiscoverer(d), WithEmailFinder(&fakeFinder{}))

	res, err := o.Enrich(context.Background(), leads, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 10, res.TotalProcessed)
	assert.Equal(t, 9, res.SuccessfulEnrichments)
	assert.Equal(t, 10, res.DiscoveryJobsRun)
	require.Len(t, res.Leads, 10)

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "Biz 3", failed[0].Name)
	assert.Equal(t, 0, failed[0].DataConfidence)
	assert.Empty(t, failed[0].EnrichmentSources)
	var dfe *model.DiscoveryFailedError
	assert.True(t, errors.As(failed[0].Err, &dfe))
	assert.NotEmpty(t, failed[0].FailureReason)

	for i, l := range res.Leads {
		assert.Equal(t, leads[i].ExternalID, l.ExternalID, "results keep input order")
		if l.Err == nil {
			assert.Equal(t, []string{model.SourceDiscovery}, l.EnrichmentSources)
			assert.Equal(t, 80, l.DataConfidence)
			require.Len(t, l.Emails, 1)
			assert.Equal(t, 95, l.Emails[0].Confidence)
			assert.Equal(t, "11-50", l.CompanySize)
		}
	}
}

func TestEnrich_EmailsFoundIsSumOfLeadEmails(t *testing.T) {
	leads := testLeads(4)
	d := &fakeDiscoverer{contacts: map[string][]model.ContactCandidate{
		"Biz 0": {
			contact("A", "One", "CEO", "a@biz0.com", model.EmailVerified),
			contact("B", "Two", "Clerk", "b@biz0.com", model.EmailGuessed),
		},
		"Biz 1": {contact("C", "Three", "Owner", "", model.EmailUnavailable)},
	}}
	finder := &fakeFinder{misses: map[string]bool{"biz3.com": true}}
	o := New(WithDiscoverer(d), WithEmailFinder(finder))

	res, err := o.Enrich(context.Background(), leads, DefaultOptions())
	require.NoError(t, err)

	sum := 0
	for _, l := range res.Leads {
		sum += len(l.Emails)
	}
	assert.Equal(t, sum, res.EmailsFound)
	assert.Equal(t, 4, res.EmailsFound)

	biz0 := res.Leads[0]
	assert.Equal(t, 95, biz0.Emails[0].Confidence)
	assert.Equal(t, 75, biz0.Emails[1].Confidence)
	assert.Len(t, biz0.DecisionMakers, 1)

	// Biz 1 had a contact with no email, so inference ran with the
	// decision maker's name.
	biz1 := res.Leads[1]
	assert.Equal(t, []string{model.SourceDiscovery, model.SourceInference}, biz1.EnrichmentSources)
	assert.Equal(t, 100, biz1.DataConfidence)

	// Biz 3: discovery found nobody and inference missed.
	biz3 := res.Leads[3]
	assert.Equal(t, []string{model.SourceDiscovery}, biz3.EnrichmentSources)
	assert.Empty(t, biz3.Emails)

	var biz1Req inference.Request
	for _, r := range finder.reqs {
		if r.Domain == "biz1.com" {
			biz1Req = r
		}
	}
	assert.Equal(t, "C", biz1Req.FirstName)
	assert.Equal(t, "Three", biz1Req.LastName)
	assert.Equal(t, "Biz 1", biz1Req.CompanyName)

	assert.Equal(t, 2, res.CostEstimate.InferenceCredits)
	assert.InDelta(t, 2.40, res.CostEstimate.DiscoveryUSD, 0.001)
	assert.InDelta(t, 2.42, res.CostEstimate.TotalUSD, 0.001)
}

func TestEnrich_DiscoveryOnlySkipsInference(t *testing.T) {
	d := &fakeDiscoverer{}
	finder := &fakeFinder{}
	o := New(WithDiscoverer(d), WithEmailFinder(finder))

	opts := DefaultOptions()
	opts.DiscoveryOnly = true
	res, err := o.Enrich(context.Background(), testLeads(3), opts)
	require.NoError(t, err)

	assert.Empty(t, finder.reqs)
	assert.Equal(t, 0, res.EmailsFound)
	assert.Equal(t, 0, res.CostEstimate.InferenceCredits)
	for _, l := range res.Leads {
		assert.Equal(t, 80, l.DataConfidence)
	}
}

func TestEnrich_DiscoveryFilters(t *testing.T) {
	d := &fakeDiscoverer{}
	o := New(WithDiscoverer(d))

	opts := Options{IncludeDiscovery: true, MaxContactsPerLead: 3}
	_, err := o.Enrich(context.Background(), testLeads(1), opts)
	require.NoError(t, err)

	require.Len(t, d.calls, 1)
	f := d.calls[0]
	assert.Equal(t, "Biz 0", f.CompanyName)
	assert.Equal(t, "Austin, TX", f.Location)
	assert.Equal(t, DefaultTargetTitles, f.JobTitles)
	assert.Equal(t, "c_level", f.Seniority)
	assert.Equal(t, []string{"biz0"}, f.Keywords)
	assert.True(t, f.IncludeEmails)
}

func TestEnrich_CreditsChargedAndRefunded(t *testing.T) {
	ledger := credit.NewLedger(credit.NewMemoryStore(), 10)
	finder := &fakeFinder{misses: map[string]bool{"biz1.com": true}}
	o := New(WithEmailFinder(finder), WithLedger(ledger))

	opts := Options{IncludeInference: true, UserID: "u1"}
	res, err := o.Enrich(context.Background(), testLeads(3), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, res.EmailsFound)
	assert.Equal(t, 2, res.CostEstimate.InferenceCredits)
	bal, err := ledger.GetBalance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 8, bal, "the miss was refunded")
}

func TestEnrich_InsufficientCreditsIsRefusal(t *testing.T) {
	store := credit.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "7", 1))
	finder := &fakeFinder{}
	o := New(WithEmailFinder(finder), WithLedger(credit.NewLedger(store, 0)))

	res, err := o.Enrich(context.Background(), testLeads(3), Options{IncludeInference: true, UserID: "7", Concurrency: 1})
	require.NoError(t, err)

	assert.Len(t, finder.reqs, 1)
	assert.Equal(t, 1, res.SuccessfulEnrichments)
	assert.Empty(t, res.Failed())
	refused := 0
	for _, l := range res.Leads {
		if l.CreditRefused {
			refused++
			assert.Contains(t, l.Warnings, model.ErrInsufficientCredits.Error())
			assert.Equal(t, 50, l.DataConfidence)
		}
	}
	assert.Equal(t, 2, refused)
}

func TestEnrich_InferenceErrorFailsLead(t *testing.T) {
	finder := &fakeFinder{errs: map[string]error{"biz0.com": context.DeadlineExceeded}}
	ledger := credit.NewLedger(credit.NewMemoryStore(), 5)
	o := New(WithEmailFinder(finder), WithLedger(ledger))

	res, err := o.Enrich(context.Background(), testLeads(2), Options{IncludeInference: true, UserID: "u"})
	require.NoError(t, err)

	require.Len(t, res.Failed(), 1)
	assert.ErrorIs(t, res.Leads[0].Err, context.DeadlineExceeded)
	assert.Equal(t, 1, res.SuccessfulEnrichments)
	bal, _ := ledger.GetBalance(context.Background(), "u")
	assert.Equal(t, 4, bal)
}

func TestEnrich_NoDomainSkipsInference(t *testing.T) {
	finder := &fakeFinder{}
	o := New(WithEmailFinder(finder))
	leads := []model.Lead{{Name: "No Site"}}

	res, err := o.Enrich(context.Background(), leads, Options{IncludeInference: true})
	require.NoError(t, err)
	assert.Empty(t, finder.reqs)
	assert.NotEmpty(t, res.Leads[0].Warnings)
	assert.Equal(t, 0, res.SuccessfulEnrichments)
}

func TestEnrich_MinConfidence(t *testing.T) {
	d := &fakeDiscoverer{contacts: map[string][]model.ContactCandidate{
		"Biz 0": {
			contact("A", "One", "CEO", "a@biz0.com", model.EmailVerified),
			contact("B", "Two", "CFO", "b@biz0.com", model.EmailGuessed),
		},
	}}
	o := New(WithDiscoverer(d))

	res, err := o.Enrich(context.Background(), testLeads(1), Options{IncludeDiscovery: true, MinConfidence: 90})
	require.NoError(t, err)
	require.Len(t, res.Leads[0].Emails, 1)
	assert.Equal(t, "a@biz0.com", res.Leads[0].Emails[0].Email)
	assert.Equal(t, 1, res.EmailsFound)
}

func TestEnrich_PreflightFailsWholeCall(t *testing.T) {
	tests := map[string]struct {
		o    *Orchestrator
		opts Options
	}{
		"no discoverer": {New(WithEmailFinder(&fakeFinder{})), DefaultOptions()},
		"no finder":     {New(WithDiscoverer(&fakeDiscoverer{})), DefaultOptions()},
		"no user":       {New(WithEmailFinder(&fakeFinder{}), WithLedger(credit.NewLedger(credit.NewMemoryStore(), 0))), Options{IncludeInference: true}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := tt.o.Enrich(context.Background(), testLeads(2), tt.opts)
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}

	// Discovery-only does not need a finder.
	_, err := New(WithDiscoverer(&fakeDiscoverer{})).Enrich(context.Background(), testLeads(1),
		Options{IncludeDiscovery: true, IncludeInference: true, DiscoveryOnly: true})
	assert.NoError(t, err)
}

type fakeSearcher struct {
	leads []model.Lead
	err   error
}

func (s fakeSearcher) Search(context.Context, leadfinder.Query) ([]model.Lead, error) {
	return s.leads, s.err
}

func TestSearchAndEnrich(t *testing.T) {
	o := New(WithLeadSearcher(fakeSearcher{leads: testLeads(2)}), WithEmailFinder(&fakeFinder{}))
	res, err := o.SearchAndEnrich(context.Background(), leadfinder.Query{Category: "dentist", Location: "Austin"}, Options{IncludeInference: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalProcessed)
	assert.Equal(t, 2, res.EmailsFound)

	_, err = New().SearchAndEnrich(context.Background(), leadfinder.Query{}, Options{})
	var pue *model.ProviderUnavailableError
	assert.True(t, errors.As(err, &pue))

	o = New(WithLeadSearcher(fakeSearcher{err: errors.New("quota")}))
	_, err = o.SearchAndEnrich(context.Background(), leadfinder.Query{}, Options{})
	assert.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	o := New()
	est := o.EstimateCost(10, DefaultOptions())
	assert.InDelta(t, 12.0, est.DiscoveryUSD, 0.001)
	assert.Equal(t, 10, est.InferenceCredits)
	assert.InDelta(t, 0.10, est.InferenceUSD, 0.001)
	assert.InDelta(t, 12.10, est.TotalUSD, 0.001)

	opts := DefaultOptions()
	opts.DiscoveryOnly = true
	assert.Zero(t, o.EstimateCost(10, opts).InferenceCredits)
}

func TestServicesStatus(t *testing.T) {
	o := New(
		WithHealthCheck("zerobounce", func(context.Context) error { return errors.New("401") }),
		WithHealthCheck("apify", func(context.Context) error { return nil }),
	)
	got := o.ServicesStatus(context.Background())
	assert.Equal(t, []ServiceStatus{
		{Name: "apify", OK: true},
		{Name: "zerobounce", OK: false, Error: "401"},
	}, got)
}

func TestFindEmail(t *testing.T) {
	ctx := context.Background()
	ledger := credit.NewLedger(credit.NewMemoryStore(), 2)
	finder := &fakeFinder{misses: map[string]bool{"nobody.com": true}}
	o := New(WithEmailFinder(finder), WithLedger(ledger))

	got, err := o.FindEmail(ctx, "u1", inference.Request{Domain: "acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "info@acme.com", got.Email)

	got, err = o.FindEmail(ctx, "u1", inference.Request{Domain: "nobody.com"})
	require.NoError(t, err)
	assert.Nil(t, got)

	bal, err := ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, bal, "only the hit is charged")

	_, err = o.FindEmail(ctx, "u1", inference.Request{Domain: "acme.com"})
	require.NoError(t, err)
	_, err = o.FindEmail(ctx, "u1", inference.Request{Domain: "acme.com"})
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)

	_, err = o.FindEmail(ctx, "", inference.Request{Domain: "acme.com"})
	assert.Error(t, err)

	_, err = New().FindEmail(ctx, "u1", inference.Request{Domain: "acme.com"})
	var pu *model.ProviderUnavailableError
	assert.ErrorAs(t, err, &pu)
}

// fakeBulk marks addresses containing "bad" invalid and "slow" unknown.
type fakeBulk struct{}

func (fakeBulk) ValidateAll(_ context.Context, emails []string) ([]inference.Validation, error) {
	out := make([]inference.Validation, 0, len(emails))
	for _, e := range emails {
		status := model.StatusValid
		switch {
		case strings.Contains(e, "bad"):
			status = model.StatusInvalid
		case strings.Contains(e, "slow"):
			status = model.StatusUnknown
		}
		out = append(out, inference.Validation{Email: e, Status: status})
	}
	return out, nil
}

func TestValidateEmails(t *testing.T) {
	ctx := context.Background()
	ledger := credit.NewLedger(credit.NewMemoryStore(), 5)
	o := New(WithBulkValidator(fakeBulk{}), WithLedger(ledger))

	got, err := o.ValidateEmails(ctx, "u1", []string{"a@acme.com", "bad@acme.com", "slow@acme.com"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.StatusInvalid, got[1].Status)

	bal, err := ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, bal, "the unchecked address is refunded")

	_, err = o.ValidateEmails(ctx, "u1", []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"})
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)

	_, err = o.ValidateEmails(ctx, "u1", nil)
	assert.Error(t, err)
	_, err = o.ValidateEmails(ctx, "u1", make([]string, MaxBulkValidation+1))
	assert.Error(t, err)

	_, err = New().ValidateEmails(ctx, "u1", []string{"a@acme.com"})
	var pu *model.ProviderUnavailableError
	assert.ErrorAs(t, err, &pu)
}

func TestUsage(t *testing.T) {
	o := New(
		WithUsage("zerobounce", func(context.Context) (any, error) { return 120, nil }),
		WithUsage("apify", func(context.Context) (any, error) { return nil, errors.New("401") }),
	)
	assert.Equal(t, []ProviderUsage{
		{Provider: "apify", Error: "401"},
		{Provider: "zerobounce", Usage: 120},
	}, o.Usage(context.Background()))
}
