package hotkeys

import (
	"slices"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestIgnoreMasks(t *testing.T) {
	caps := uint16(xproto.ModMaskLock)
	num := uint16(xproto.ModMask2)
	scroll := uint16(xproto.ModMask5)

	tests := []struct {
		name      string
		num       uint16
		scroll    uint16
		wantMasks []uint16
	}{
		{"caps only", 0, 0, []uint16{0, caps}},
		{"caps and num", num, 0, []uint16{0, caps, num, caps | num}},
		{"all three", num, scroll, []uint16{0, caps, num, scroll, caps | num, caps | scroll, num | scroll, caps | num | scroll}},
		{"num shares caps bit", caps, 0, []uint16{0, caps}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ignoreMasks(tt.num, tt.scroll)
			slices.Sort(got)
			want := slices.Clone(tt.wantMasks)
			slices.Sort(want)
			if !slices.Equal(got, want) {
				t.Fatalf("ignoreMasks(%#x, %#x) = %v, want %v", tt.num, tt.scroll, got, want)
			}
		})
	}
}
