package core

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{spec: "0 3 * * *"},
		{spec: "*/15 * * * *"},
		{spec: "@daily"},
		{spec: "@every 1h"},
		{spec: "not a schedule", wantErr: true},
		{spec: "0 0 3 * * *", wantErr: true}, // seconds field not accepted
		{spec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			sched, err := ParseSchedule(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if err == nil {
				now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
				if next := sched.Next(now); !next.After(now) {
					t.Errorf("Next(%v) = %v, want later", now, next)
				}
			}
		})
	}
}
