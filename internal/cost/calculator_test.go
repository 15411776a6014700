package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscovery(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	tests := []struct {
		results int
		want    float64
	}{
		{0, 0},
		{1, 1.20},
		{999, 1.20},
		{1000, 1.20},
		{1001, 2.40},
		{2500, 3.60},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, calc.Discovery(tt.results), 0.0001, "results=%d", tt.results)
	}
}

func TestDiscovery_CustomRate(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{Discovery: DiscoveryRate{PerBlock: 5, BlockSize: 100}})
	assert.InDelta(t, 10.0, calc.Discovery(150), 0.0001)
	// Inference keeps its default.
	assert.Equal(t, 1, calc.CreditsPerEmail())
}

func TestInference(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())
	assert.InDelta(t, 0.0, calc.Inference(0), 0.0001)
	assert.InDelta(t, 0.03, calc.Inference(3), 0.0001)
}

func TestNewCalculator_ZeroRates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{})
	assert.Equal(t, DefaultRates().Discovery, calc.Rates().Discovery)
}
