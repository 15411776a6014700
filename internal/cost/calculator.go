// Package cost prices discovery runs and inference credits.
package cost

import "math"

// Rates holds provider pricing.
type Rates struct {
	Discovery DiscoveryRate `yaml:"discovery" mapstructure:"discovery"`
	Inference InferenceRate `yaml:"inference" mapstructure:"inference"`
}

// DiscoveryRate prices discovery results in blocks of BlockSize.
type DiscoveryRate struct {
	PerBlock  float64 `yaml:"per_block" mapstructure:"per_block"`
	BlockSize int     `yaml:"block_size" mapstructure:"block_size"`
}

// InferenceRate prices inferred emails in ledger credits.
type InferenceRate struct {
	CreditsPerEmail int     `yaml:"credits_per_email" mapstructure:"credits_per_email"`
	USDPerCredit    float64 `yaml:"usd_per_credit" mapstructure:"usd_per_credit"`
}

// DefaultRates returns $1.20 per 1,000 discovery results and one $0.01
// credit per inferred email.
func DefaultRates() Rates {
	return Rates{
		Discovery: DiscoveryRate{PerBlock: 1.20, BlockSize: 1000},
		Inference: InferenceRate{CreditsPerEmail: 1, USDPerCredit: 0.01},
	}
}

// Calculator computes costs from Rates.
type Calculator struct {
	rates Rates
}

// NewCalculator fills any zero rate from DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	def := DefaultRates()
	if rates.Discovery.BlockSize <= 0 {
		rates.Discovery.BlockSize = def.Discovery.BlockSize
	}
	if rates.Discovery.PerBlock <= 0 {
		rates.Discovery.PerBlock = def.Discovery.PerBlock
	}
	if rates.Inference.CreditsPerEmail <= 0 {
		rates.Inference.CreditsPerEmail = def.Inference.CreditsPerEmail
	}
	if rates.Inference.USDPerCredit < 0 {
		rates.Inference.USDPerCredit = def.Inference.USDPerCredit
	}
	return &Calculator{rates: rates}
}

// Rates returns the effective rates.
func (c *Calculator) Rates() Rates { return c.rates }

// Discovery returns ceil(results/blockSize) × perBlock. Zero results cost
// nothing.
func (c *Calculator) Discovery(results int) float64 {
	if results <= 0 {
		return 0
	}
	blocks := math.Ceil(float64(results) / float64(c.rates.Discovery.BlockSize))
	return round2(blocks * c.rates.Discovery.PerBlock)
}

// CreditsPerEmail is the ledger charge for one inference attempt.
func (c *Calculator) CreditsPerEmail() int {
	return c.rates.Inference.CreditsPerEmail
}

// Inference returns the USD value of the given number of credits.
func (c *Calculator) Inference(credits int) float64 {
	return round2(float64(credits) * c.rates.Inference.USDPerCredit)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
