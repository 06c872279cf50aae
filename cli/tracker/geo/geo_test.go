package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(52.036242, 37.887744, 52.036242, 37.887744))
	assert.Equal(t, 0.0, DistanceKm(0, 0, 0, 0))
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := DistanceKm(52.036242, 37.887744, 51.5, 38.1)
	b := DistanceKm(51.5, 38.1, 52.036242, 37.887744)
	assert.InDelta(t, a, b, 1e-12)
}

func TestDistanceKmKnownFixture(t *testing.T) {
	// Сотая часть градуса долготы на широте Волово.
	d := DistanceKm(52.036242, 37.887744, 52.036242, 37.897744)
	assert.InDelta(t, 0.683, d, 0.683*0.01)
}
