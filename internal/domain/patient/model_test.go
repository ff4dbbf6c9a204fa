package patient

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAgeOn(t *testing.T) {
	birth := time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		today time.Time
		want  int
	}{
		{time.Date(2024, 6, 14, 23, 59, 0, 0, time.UTC), 23},
		{time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), 24},
		{time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), 23},
		{time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 24},
		{time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		if got := AgeOn(birth, tt.today); got != tt.want {
			t.Errorf("AgeOn(%s) = %d, want %d", tt.today.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestAgeOn_LeapDay(t *testing.T) {
	birth := time.Date(1944, 2, 29, 0, 0, 0, 0, time.UTC)
	if got := AgeOn(birth, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)); got != 78 {
		t.Errorf("expected 78 on Feb 28, got %d", got)
	}
	if got := AgeOn(birth, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)); got != 79 {
		t.Errorf("expected 79 on Mar 1, got %d", got)
	}
}

func TestDate_JSON(t *testing.T) {
	p := Patient{BirthDate: NewDate(1938, time.November, 3)}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["fechaNacimiento"] != "1938-11-03" {
		t.Errorf("unexpected fechaNacimiento %v", m["fechaNacimiento"])
	}
	if _, ok := m["estadoSalud"]; !ok {
		t.Error("estadoSalud must be present even when null")
	}

	var back Patient
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.BirthDate.Equal(p.BirthDate.Time) {
		t.Errorf("round trip mismatch: %s", back.BirthDate)
	}

	var bad Date
	if err := bad.UnmarshalJSON([]byte(`"03/11/1938"`)); err == nil {
		t.Error("expected error for non ISO date")
	}
}
