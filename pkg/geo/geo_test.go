package geo

import (
	"math"
	"testing"
	"time"
)

func TestPoint_Key_SixDecimals(t *testing.T) {
	p := Point{Lat: 32.8968, Lng: -97.038}
	if got := p.Key(); got != "32.896800_-97.038000" {
		t.Errorf("Key() = %q, want %q", got, "32.896800_-97.038000")
	}
	// 同一坐标不同书写形式必须得到同一个 Key
	q := Point{Lat: 32.896800, Lng: -97.038000}
	if p.Key() != q.Key() {
		t.Errorf("keys differ for equal coordinates: %q vs %q", p.Key(), q.Key())
	}
}

func TestPoint_Valid(t *testing.T) {
	cases := []struct {
		name string
		p    Point
		want bool
	}{
		{"null island", Point{0, 0}, true},
		{"dfw", Point{32.8968, -97.038}, true},
		{"lat too big", Point{90.000001, 0}, false},
		{"lat min", Point{-90, 0}, true},
		{"lng max", Point{0, 180}, true},
		{"lng too small", Point{0, -180.5}, false},
		{"nan", Point{math.NaN(), 0}, false},
	}
	for _, tc := range cases {
		if got := tc.p.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDistanceM_KnownPairs(t *testing.T) {
	// DFW 机场 → 巴黎 CDG，约 7,990 km；允许 1% 误差
	dfw := Point{32.8968, -97.038}
	cdg := Point{49.0097, 2.5479}
	d := DistanceKm(dfw, cdg)
	if d < 7900 || d > 8100 {
		t.Errorf("DFW->CDG distance = %.1f km, want ~7990", d)
	}

	// 同一点距离为 0
	if d := DistanceM(dfw, dfw); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}
}

func TestDistanceM_CrossContinental_NoError(t *testing.T) {
	// 跨洲与极端坐标都不得 NaN / panic
	pairs := [][2]Point{
		{{0, 0}, {0, 180}},
		{{90, 0}, {-90, 0}},
		{{49.0097, 2.5479}, {-33.8688, 151.2093}},
	}
	for _, pair := range pairs {
		d := DistanceM(pair[0], pair[1])
		if math.IsNaN(d) || d < 0 {
			t.Errorf("DistanceM(%v, %v) = %f", pair[0], pair[1], d)
		}
	}
}

func TestTriggerDescriptor_ShouldRefresh(t *testing.T) {
	now := time.Now()
	manual := TriggerDescriptor{Kind: TriggerManual, ObservedAt: now}
	if !manual.ShouldRefresh(500, time.Hour, now) {
		t.Error("manual trigger should always refresh")
	}

	moved := TriggerDescriptor{Kind: TriggerRelocation, MovedM: 800, ObservedAt: now}
	if !moved.ShouldRefresh(500, time.Hour, now) {
		t.Error("relocation beyond threshold should refresh")
	}
	if moved.ShouldRefresh(1000, time.Hour, now) {
		t.Error("relocation under threshold should not refresh")
	}

	stale := TriggerDescriptor{Kind: TriggerStale, ObservedAt: now}
	if !stale.ShouldRefresh(0, 30*time.Minute, now.Add(-time.Hour)) {
		t.Error("stale strategy should refresh")
	}
	if stale.ShouldRefresh(0, 30*time.Minute, now.Add(-time.Minute)) {
		t.Error("fresh strategy should not refresh")
	}
}
