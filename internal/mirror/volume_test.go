package mirror

import (
	"testing"

	"mt5copier/internal/account"
	"mt5copier/internal/terminal"
)

func TestResolveVolumeFloorsBelowMinEquityRatioUpToMinimumLot(t *testing.T) {
	fc := account.FollowerConfig{VolumeMode: account.VolumeEquityRatio}
	info := terminal.SymbolInfo{VolumeMin: 0.01, VolumeMax: 10, VolumeStep: 0.01}

	// follower equity is 0.1% of master's: a raw ratio volume far below min.
	v, ok := resolveVolume(fc, 1.0, 10000, 10, info)
	if !ok {
		t.Fatal("expected the trade to open at the minimum lot, not be skipped")
	}
	if v != info.VolumeMin {
		t.Fatalf("volume = %v, want %v (clamped up to min before quantizing)", v, info.VolumeMin)
	}
}

func TestResolveVolumeClampsAboveMax(t *testing.T) {
	fc := account.FollowerConfig{VolumeMode: account.VolumeSame}
	info := terminal.SymbolInfo{VolumeMin: 0.01, VolumeMax: 5, VolumeStep: 0.01}

	v, ok := resolveVolume(fc, 50, 10000, 10000, info)
	if !ok {
		t.Fatal("expected ok")
	}
	if v != info.VolumeMax {
		t.Fatalf("volume = %v, want %v", v, info.VolumeMax)
	}
}

func TestResolveVolumeQuantizesToStepAfterClamping(t *testing.T) {
	fc := account.FollowerConfig{VolumeMode: account.VolumeSame}
	info := terminal.SymbolInfo{VolumeMin: 0.01, VolumeMax: 10, VolumeStep: 0.1}

	v, ok := resolveVolume(fc, 0.37, 10000, 10000, info)
	if !ok {
		t.Fatal("expected ok")
	}
	if v != 0.4 {
		t.Fatalf("volume = %v, want 0.4 (0.37 rounded to the 0.1 grid)", v)
	}
}

func TestResolveVolumeSkipsWhenStillBelowMinAfterQuantizing(t *testing.T) {
	fc := account.FollowerConfig{VolumeMode: account.VolumeSame}
	// min (0.04) quantizes down to 0 on the 0.1 grid, landing below min.
	info := terminal.SymbolInfo{VolumeMin: 0.04, VolumeMax: 10, VolumeStep: 0.1}

	_, ok := resolveVolume(fc, 0.001, 10000, 10000, info)
	if ok {
		t.Fatal("expected the trade to be skipped")
	}
}
