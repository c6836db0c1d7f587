package claim

import (
	"testing"
	"time"
)

func TestParseCooldown(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    time.Time
		match   bool
	}{
		{
			name:    "timestamp with trailing lines",
			message: "12/31/2030 23:59\nSome extra text",
			want:    time.Date(2030, time.December, 31, 23, 59, 0, 0, time.Local),
			match:   true,
		},
		{
			name:    "timestamp with inline suffix",
			message: "02/01/2031 08:00 Come back later",
			want:    time.Date(2031, time.February, 1, 8, 0, 0, 0, time.Local),
			match:   true,
		},
		{
			name:    "crlf line ending",
			message: "12/31/2030 23:59\r\nextra",
			want:    time.Date(2030, time.December, 31, 23, 59, 0, 0, time.Local),
			match:   true,
		},
		{
			name:    "bare carriage return line ending",
			message: "12/31/2030 23:59\rextra",
			want:    time.Date(2030, time.December, 31, 23, 59, 0, 0, time.Local),
			match:   true,
		},
		{
			name:    "timestamp only after bare carriage return",
			message: "Come back at\r12/31/2030 23:59",
			match:   false,
		},
		{
			name:    "matched but not a real date",
			message: "13/45/2030 23:59 try again",
			match:   true,
		},
		{
			name:    "empty message",
			message: "",
			match:   false,
		},
		{
			name:    "no timestamp",
			message: "Congrats!",
			match:   false,
		},
		{
			name:    "timestamp only on second line",
			message: "Come back at\n12/31/2030 23:59",
			match:   false,
		},
		{
			name:    "single digit fields do not match",
			message: "1/2/2030 3:04",
			match:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, match := ParseCooldown(tt.message)
			if match != tt.match {
				t.Fatalf("ParseCooldown(%q) match = %v, want %v", tt.message, match, tt.match)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseCooldown(%q) time = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
