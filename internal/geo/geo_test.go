package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceSamePoint(t *testing.T) {
	p := Coordinates{Lat: 55.611087, Lng: 37.20829}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistanceKnownPair(t *testing.T) {
	a := Coordinates{Lat: 55.611087, Lng: 37.20829}
	b := Coordinates{Lat: 55.595884, Lng: 37.209755}

	d := Distance(a, b)
	assert.InDelta(t, 1693.0, d, 5)
}

func TestCoordinatesEqualTolerance(t *testing.T) {
	a := Coordinates{Lat: 1.0, Lng: 2.0}
	b := Coordinates{Lat: 1.0000001, Lng: 2.0000001}
	assert.True(t, a.Equal(b))

	c := Coordinates{Lat: 1.001, Lng: 2.0}
	assert.False(t, a.Equal(c))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Coordinates{Lat: 45, Lng: 90}.Validate())
	require.ErrorIs(t, Coordinates{Lat: 91, Lng: 0}.Validate(), ErrInvalidCoordinate)
	require.ErrorIs(t, Coordinates{Lat: 0, Lng: 181}.Validate(), ErrInvalidCoordinate)
}
