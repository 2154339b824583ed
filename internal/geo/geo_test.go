package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		lon1, lat1, lon2, lat2 float64
		want                   float64
		tolerance              float64
	}{
		{
			name: "identical points",
			lon1: 18.0686, lat1: 59.3293,
			lon2: 18.0686, lat2: 59.3293,
			want: 0, tolerance: 0.0001,
		},
		{
			name: "stockholm to gothenburg",
			lon1: 18.0686, lat1: 59.3293,
			lon2: 11.9746, lat2: 57.7089,
			want: 397, tolerance: 5,
		},
		{
			name: "stockholm to malmo",
			lon1: 18.0686, lat1: 59.3293,
			lon2: 13.0038, lat2: 55.6050,
			want: 513, tolerance: 5,
		},
		{
			name: "one degree of latitude",
			lon1: 0, lat1: 0,
			lon2: 0, lat2: 1,
			want: 111.19, tolerance: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lon1, tt.lat1, tt.lon2, tt.lat2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("DistanceKm() = %v, want %v (±%v)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	points := [][4]float64{
		{18.0686, 59.3293, 11.9746, 57.7089},
		{0, 0, 10, 10},
		{-122.4194, 37.7749, 18.0686, 59.3293},
	}

	for _, p := range points {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("DistanceKm not symmetric: %v vs %v", ab, ba)
		}
	}
}

func TestDistanceKmNonNegative(t *testing.T) {
	if d := DistanceKm(18.0, 59.0, 18.001, 59.001); d <= 0 {
		t.Errorf("expected positive distance for distinct points, got %v", d)
	}
}
