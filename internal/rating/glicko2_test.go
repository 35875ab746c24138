package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlicko2RoundTrip(t *testing.T) {
	r := NewGlicko2Rating(1750, 120, DefaultSigma)

	assert.InDelta(t, 1750.0, r.ToElo(), 1e-9)
	assert.InDelta(t, 120.0, r.Deviation(), 1e-9)
	assert.Equal(t, 1510.0, r.Conservative())
}

func TestNonPositiveDeviationIsUnrated(t *testing.T) {
	r := NewGlicko2Rating(DefaultMu, 0, DefaultSigma)

	assert.InDelta(t, DefaultPhi, r.Deviation(), 1e-9)
	assert.Equal(t, 800.0, r.Conservative())
}
