package natsadapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

func TestSubjectPrefix(t *testing.T) {
	tests := []struct{ in, want string }{
		{"vehicle.position.>", "vehicle.position."},
		{"fleet.*", "fleet."},
		{"gps.", "gps."},
	}
	for _, tt := range tests {
		if got := subjectPrefix(tt.in); got != tt.want {
			t.Errorf("subjectPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFix(t *testing.T) {
	in := domain.PositionFix{
		VehicleID:  "truck-7",
		Time:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Coordinate: domain.NewCoordinate(47.453551, -116.788118),
		Heading:    90,
		Speed:      12.5,
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	got, err := decodeFix(data)
	if err != nil {
		t.Fatalf("decodeFix: %v", err)
	}
	if got.VehicleID != in.VehicleID || got.Coordinate != in.Coordinate || !got.Time.Equal(in.Time) {
		t.Errorf("decodeFix = %+v, want %+v", got, in)
	}
}

func TestDecodeFix_ClampsCoordinate(t *testing.T) {
	got, err := decodeFix([]byte(`{"vehicle_id":"x","coordinate":{"lat":95,"lon":-200}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Coordinate.Latitude != domain.MaxLatitude || got.Coordinate.Longitude != domain.MinLongitude {
		t.Errorf("coordinate = %v, want clamped", got.Coordinate)
	}
}

func TestDecodeFix_Malformed(t *testing.T) {
	if _, err := decodeFix([]byte("lat=1")); err == nil {
		t.Fatal("expected error")
	}
}
