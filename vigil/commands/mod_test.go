package commands

import (
	"testing"
	"time"
)

func TestParseActionDuration(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "minutes", raw: "30m", want: 30 * time.Minute},
		{name: "hours", raw: "12h", want: 12 * time.Hour},
		{name: "compound", raw: "1h30m", want: 90 * time.Minute},
		{name: "below minimum", raw: "5s", wantErr: true},
		{name: "zero", raw: "0s", wantErr: true},
		{name: "negative", raw: "-1h", wantErr: true},
		{name: "garbage", raw: "tomorrow", wantErr: true},
		{name: "over maximum clamps", raw: "1000000h", want: maxActionDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseActionDuration(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseActionDuration(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseActionDuration(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
