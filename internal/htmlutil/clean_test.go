package htmlutil

import "testing"

func TestToText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  spread\n\nover   lines ", "spread over lines"},
		{"<p>Ozone rises with <b>temperature</b>.</p>", "Ozone rises with temperature."},
		{"PM2.5 &amp; PM10", "PM2.5 & PM10"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToText(tt.in); got != tt.want {
			t.Errorf("ToText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
