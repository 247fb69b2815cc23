package importer

import "testing"

func TestMapDayToBMLT(t *testing.T) {
	tests := []struct {
		day  string
		want int
	}{
		{"Sunday", 0},
		{"Monday", 1},
		{"Tuesday", 2},
		{"Wednesday", 3},
		{"Thursday", 4},
		{"Friday", 5},
		{"Saturday", 6},
		{"SATURDAY", 6},
		{"  friday  ", 5},
		{"Funday", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := MapDayToBMLT(tt.day); got != tt.want {
			t.Errorf("MapDayToBMLT(%q) = %d, want %d", tt.day, got, tt.want)
		}
	}
}

func TestFormatTimeForBMLT(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1930", "19:30"},
		{"930", "09:30"},
		{"19:30", "19:30"},
		{"9:30", "09:30"},
		{"7:00 PM", "07:00"},
		{"0000", "00:00"},
		{"2359", "23:59"},
		{"", "12:00"},
		{"invalid", "12:00"},
		{"2500", "12:00"},
		{"1275", "12:00"},
		{"12", "12:00"},
	}

	for _, tt := range tests {
		if got := FormatTimeForBMLT(tt.raw); got != tt.want {
			t.Errorf("FormatTimeForBMLT(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"1930", "19:30", true},
		{"930", "09:30", true},
		{"09:30", "09:30", true},
		{"23:59", "23:59", true},
		{"24:00", "", false},
		{"10:5", "", false},
		{"12345", "", false},
		{"12", "", false},
		{"", "", false},
		{"noon", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseTime(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseTime(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		raw  string
		def  float64
		want float64
	}{
		{"40.7128", 0, 40.7128},
		{"-74.0060", 0, -74.0060},
		{"", 39.5, 39.5},
		{"not a number", -98.3, -98.3},
		{"  12.5  ", 0, 12.5},
	}

	for _, tt := range tests {
		if got := ParseCoordinate(tt.raw, tt.def); got != tt.want {
			t.Errorf("ParseCoordinate(%q, %g) = %g, want %g", tt.raw, tt.def, got, tt.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	truthy := []string{"TRUE", "true", "True", "1", " 1 "}
	for _, s := range truthy {
		if !isTruthy(s) {
			t.Errorf("isTruthy(%q) = false, want true", s)
		}
	}
	falsy := []string{"", "FALSE", "0", "yes", "T"}
	for _, s := range falsy {
		if isTruthy(s) {
			t.Errorf("isTruthy(%q) = true, want false", s)
		}
	}
}
