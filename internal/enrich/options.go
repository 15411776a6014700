package enrich

// DefaultMaxContactsPerLead caps discovery results per lead.
const DefaultMaxContactsPerLead = 5

// DefaultTargetTitles scope discovery to people who can buy.
var DefaultTargetTitles = []string{"CEO", "Founder", "Owner", "President", "Director", "Manager"}

// Options controls one Enrich call.
type Options struct {
	IncludeDiscovery bool `json:"include_discovery" mapstructure:"include_discovery"`
	IncludeInference bool `json:"include_inference" mapstructure:"include_inference"`
	// DiscoveryOnly disables the inference fallback entirely.
	DiscoveryOnly      bool     `json:"discovery_only" mapstructure:"discovery_only"`
	MaxContactsPerLead int      `json:"max_contacts_per_lead" mapstructure:"max_contacts_per_lead"`
	TargetTitles       []string `json:"target_titles" mapstructure:"target_titles"`
	// MinConfidence drops emails scored below it when positive.
	MinConfidence int `json:"min_confidence" mapstructure:"min_confidence"`
	// UserID is charged for inference when a ledger is configured.
	UserID string `json:"user_id"`
	// Concurrency caps in-flight leads; zero means one goroutine per lead.
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
}

// DefaultOptions enables both discovery and inference.
func DefaultOptions() Options {
	return Options{
		IncludeDiscovery:   true,
		IncludeInference:   true,
		MaxContactsPerLead: DefaultMaxContactsPerLead,
		TargetTitles:       DefaultTargetTitles,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxContactsPerLead <= 0 {
		o.MaxContactsPerLead = DefaultMaxContactsPerLead
	}
	if o.TargetTitles == nil {
		o.TargetTitles = DefaultTargetTitles
	}
	return o
}

func (o Options) inferenceEnabled() bool {
	return o.IncludeInference && !o.DiscoveryOnly
}
