package common

import "testing"

func TestDigitIndex(t *testing.T) {
	tests := []struct {
		key  uint32
		want int
	}{
		{Key1, 0},
		{Key7, 6},
		{Key9, 8},
		{48, -1},
		{KeyW, -1},
		{KeyUp, -1},
	}
	for _, tt := range tests {
		if got := DigitIndex(tt.key); got != tt.want {
			t.Errorf("DigitIndex(%d) = %d, want %d", tt.key, got, tt.want)
		}
	}
}
