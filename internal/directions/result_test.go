package directions

import (
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ubicate.osuc.dev/internal/models"
)

func TestResultFormatting(t *testing.T) {
	tests := []struct {
		duration, distance float64
		wantMinutes        int
		wantMeters         int
		wantText           string
	}{
		{duration: 390, distance: 520.9, wantMinutes: 6, wantMeters: 520, wantText: "6 min"},
		{duration: 59.9, distance: 0.4, wantMinutes: 0, wantMeters: 0, wantText: "0 min"},
		{duration: 3600, distance: 4210, wantMinutes: 60, wantMeters: 4210, wantText: "60 min"},
	}
	for _, tt := range tests {
		r := Result{Candidate: Candidate{DurationSeconds: tt.duration, DistanceMeters: tt.distance}}
		assert.Equal(t, tt.wantMinutes, r.DurationMinutes())
		assert.Equal(t, tt.wantMeters, r.WholeMeters())
		assert.Equal(t, tt.wantText, r.FormatDuration())
	}
}

func TestResultPathAndPolyline(t *testing.T) {
	seq := geom.NewSequence([]float64{-120.2, 38.5, -120.95, 40.7, -126.453, 43.252}, geom.DimXY)
	r := Result{Candidate: Candidate{Geometry: geom.NewLineString(seq)}}

	path := r.Path()
	require.Len(t, path, 3)
	assert.Equal(t, models.Coordinates{Lng: -120.2, Lat: 38.5}, path[0])

	// reference example from the polyline format documentation
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", r.EncodedPolyline())
}

func TestInitialHeadingDegenerate(t *testing.T) {
	assert.Equal(t, "", Result{}.InitialHeading())

	seq := geom.NewSequence([]float64{-70.61, -33.49, -70.61, -33.49}, geom.DimXY)
	r := Result{Candidate: Candidate{Geometry: geom.NewLineString(seq)}}
	assert.Equal(t, "", r.InitialHeading())
}

func TestStraightLineMeters(t *testing.T) {
	r := Result{Origin: testOrigin, Destination: testDestination}
	assert.InDelta(t, 128, r.StraightLineMeters(), 5)
}
