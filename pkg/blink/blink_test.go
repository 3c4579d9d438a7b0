package blink

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/teslashibe/go-facecues/pkg/facemesh"
)

// Coordinates are whole or half pixels on a 256px frame so that
// normalization round-trips exactly.
const side = 256

var frame = facemesh.FrameSize{Width: side, Height: side}

type testFace struct {
	lm   facemesh.Landmarks
	topo facemesh.Topology
}

func newTestFace() *testFace {
	lm := make(facemesh.Landmarks, 468)
	for i := range lm {
		lm[i] = facemesh.Landmark{X: 0.5, Y: 0.5}
	}
	return &testFace{lm: lm, topo: facemesh.MediaPipe()}
}

func (f *testFace) set(i int, x, y float64) {
	f.lm[i] = facemesh.Landmark{X: x / side, Y: y / side}
}

// eye places a ring with the given corner-to-corner width and lid opening.
// The resulting EAR is vertical / horizontal.
func (f *testFace) eye(ring facemesh.EyeRing, cx, cy, horizontal, vertical float64) {
	f.set(ring[0], cx-horizontal/2, cy)
	f.set(ring[8], cx+horizontal/2, cy)
	f.set(ring[1], cx-2, cy-vertical/2)
	f.set(ring[14], cx-2, cy+vertical/2)
	f.set(ring[2], cx+2, cy-vertical/2)
	f.set(ring[13], cx+2, cy+vertical/2)
}

// eyes places both eyes with the same shape.
func (f *testFace) eyes(horizontal, vertical float64) {
	f.eye(f.topo.LeftEye, 160, 100, horizontal, vertical)
	f.eye(f.topo.RightEye, 96, 100, horizontal, vertical)
}

// mouth places the lips; openness is vertical / horizontal * 100.
func (f *testFace) mouth(horizontal, vertical float64) {
	f.set(f.topo.Mouth.Left, 128-horizontal/2, 190)
	f.set(f.topo.Mouth.Right, 128+horizontal/2, 190)
	f.set(f.topo.Mouth.Top, 128, 190-vertical/2)
	f.set(f.topo.Mouth.Bottom, 128, 190+vertical/2)
}

func TestEyeAspectRatio_ClosedEye(t *testing.T) {
	f := newTestFace()
	f.eye(f.topo.LeftEye, 160, 100, 10, 0)

	ear, err := EyeAspectRatio(f.topo.LeftEye, f.lm, frame)
	if err != nil {
		t.Fatalf("EyeAspectRatio failed: %v", err)
	}
	if ear != 0 {
		t.Errorf("Expected EAR 0, got %v", ear)
	}
}

func TestEyeAspectRatio_Values(t *testing.T) {
	tests := []struct {
		horizontal, vertical float64
		want                 float64
	}{
		{20, 3, 0.15},
		{20, 1, 0.05},
		{16, 4, 0.25},
		{32, 8, 0.25},
	}

	for _, tt := range tests {
		f := newTestFace()
		f.eye(f.topo.RightEye, 96, 100, tt.horizontal, tt.vertical)

		ear, err := EyeAspectRatio(f.topo.RightEye, f.lm, frame)
		if err != nil {
			t.Fatalf("EyeAspectRatio failed: %v", err)
		}
		if diff := ear - tt.want; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("h=%v v=%v: expected EAR %v, got %v", tt.horizontal, tt.vertical, tt.want, ear)
		}
	}
}

func TestEyeAspectRatio_Degenerate(t *testing.T) {
	f := newTestFace()
	f.eye(f.topo.LeftEye, 160, 100, 0, 6)

	_, err := EyeAspectRatio(f.topo.LeftEye, f.lm, frame)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry, got %v", err)
	}
}

func TestEyeAspectRatio_Errors(t *testing.T) {
	f := newTestFace()

	if _, err := EyeAspectRatio(f.topo.LeftEye, f.lm[:300], frame); !errors.Is(err, facemesh.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := EyeAspectRatio(f.topo.LeftEye, f.lm, facemesh.FrameSize{Width: 0, Height: 10}); !errors.Is(err, facemesh.ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions, got %v", err)
	}
}

func TestMouthOpenness(t *testing.T) {
	f := newTestFace()
	f.mouth(32, 4)

	got, err := MouthOpenness(f.topo.Mouth, f.lm, frame)
	if err != nil {
		t.Fatalf("MouthOpenness failed: %v", err)
	}
	if got != 12.5 {
		t.Errorf("Expected 12.5, got %v", got)
	}
}

func TestMouthOpenness_ZeroWidth(t *testing.T) {
	for _, vertical := range []float64{0, 1, 10, 80} {
		f := newTestFace()
		f.mouth(0, vertical)

		got, err := MouthOpenness(f.topo.Mouth, f.lm, frame)
		if err != nil {
			t.Errorf("vertical %v: expected no error, got %v", vertical, err)
		}
		if got != 0 {
			t.Errorf("vertical %v: expected 0, got %v", vertical, got)
		}
	}
}

func TestMouthOpenness_Errors(t *testing.T) {
	f := newTestFace()

	if _, err := MouthOpenness(f.topo.Mouth, f.lm[:100], frame); !errors.Is(err, facemesh.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := MouthOpenness(f.topo.Mouth, f.lm, facemesh.FrameSize{Width: 10, Height: -10}); !errors.Is(err, facemesh.ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions, got %v", err)
	}
}

func TestIsBlinking_TalkingSuppresses(t *testing.T) {
	f := newTestFace()
	f.eyes(20, 1)  // EAR 0.05
	f.mouth(20, 4) // openness 20

	if IsBlinking(f.lm, frame, DefaultConfig()) {
		t.Error("Expected no blink while talking")
	}
	if !IsTalking(f.lm, frame, DefaultConfig()) {
		t.Error("Expected talking")
	}
}

func TestIsBlinking_ClosedEyes(t *testing.T) {
	f := newTestFace()
	f.eyes(20, 3)  // EAR 0.15
	f.mouth(20, 1) // openness 5

	if !IsBlinking(f.lm, frame, DefaultConfig()) {
		t.Error("Expected blink")
	}
	if IsTalking(f.lm, frame, DefaultConfig()) {
		t.Error("Expected not talking")
	}
}

func TestIsBlinking_OpenEyes(t *testing.T) {
	f := newTestFace()
	f.eyes(20, 6) // EAR 0.3
	f.mouth(20, 1)

	if IsBlinking(f.lm, frame, DefaultConfig()) {
		t.Error("Expected no blink with open eyes")
	}
}

func TestIsBlinking_Boundaries(t *testing.T) {
	f := newTestFace()
	f.eyes(16, 4)  // EAR exactly 0.25
	f.mouth(32, 4) // openness exactly 12.5

	cfg := DefaultConfig()
	cfg.EARThreshold = 0.25
	cfg.MouthOpenThreshold = 12.5
	if IsBlinking(f.lm, frame, cfg) {
		t.Error("EAR equal to threshold is not a blink")
	}

	cfg.EARThreshold = 0.26
	if !IsBlinking(f.lm, frame, cfg) {
		t.Error("Mouth openness equal to threshold must not suppress")
	}

	cfg.MouthOpenThreshold = 12.4
	if IsBlinking(f.lm, frame, cfg) {
		t.Error("Mouth openness above threshold must suppress")
	}
}

func TestIsBlinking_FailuresReportFalse(t *testing.T) {
	cfg := DefaultConfig()

	// Collapsed eyes: EAR is undefined
	f := newTestFace()
	f.mouth(20, 1)
	if IsBlinking(f.lm, frame, cfg) {
		t.Error("Expected false for degenerate eyes")
	}

	f = newTestFace()
	f.eyes(20, 1)
	f.mouth(20, 1)
	if IsBlinking(f.lm[:50], frame, cfg) {
		t.Error("Expected false for short landmark set")
	}
	if IsBlinking(f.lm, facemesh.FrameSize{}, cfg) {
		t.Error("Expected false for invalid frame size")
	}
	if IsTalking(nil, frame, cfg) {
		t.Error("Expected no talking for empty landmarks")
	}
}

func TestConfig_BlinkingTalking(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name     string
		m        Metrics
		blinking bool
		talking  bool
	}{
		{"open eyes", Metrics{AverageEAR: 0.3, MouthOpenness: 5}, false, false},
		{"closed eyes", Metrics{AverageEAR: 0.1, MouthOpenness: 5}, true, false},
		{"talking suppresses", Metrics{AverageEAR: 0.1, MouthOpenness: 30}, false, true},
		{"EAR at threshold", Metrics{AverageEAR: 0.2, MouthOpenness: 5}, false, false},
		{"mouth at threshold", Metrics{AverageEAR: 0.1, MouthOpenness: 15}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Blinking(tt.m); got != tt.blinking {
				t.Errorf("Blinking(%+v) = %v, want %v", tt.m, got, tt.blinking)
			}
			if got := cfg.Talking(tt.m); got != tt.talking {
				t.Errorf("Talking(%+v) = %v, want %v", tt.m, got, tt.talking)
			}
		})
	}
}

func TestIsBlinking_DegenerateEyesWhileTalking(t *testing.T) {
	f := newTestFace()
	f.mouth(20, 4) // openness 20, eyes left collapsed

	cfg := DefaultConfig()
	m, err := Measure(f.lm, frame, cfg)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Fatalf("Expected ErrDegenerateGeometry, got %v", err)
	}
	if !cfg.Talking(m) {
		t.Error("Partial metrics should still report talking")
	}
	if IsBlinking(f.lm, frame, cfg) {
		t.Error("Expected no blink")
	}
	if !IsTalking(f.lm, frame, cfg) {
		t.Error("Expected talking")
	}
}

func TestMeasure(t *testing.T) {
	f := newTestFace()
	f.eye(f.topo.LeftEye, 160, 100, 16, 4)  // 0.25
	f.eye(f.topo.RightEye, 96, 100, 32, 4) // 0.125
	f.mouth(32, 4)

	got, err := Measure(f.lm, frame, DefaultConfig())
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}

	want := Metrics{LeftEAR: 0.25, RightEAR: 0.125, AverageEAR: 0.1875, MouthOpenness: 12.5}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Measure mismatch (-want +got):\n%s", diff)
	}

	// Degenerate right eye keeps the metrics computed before it
	f.eye(f.topo.RightEye, 96, 100, 0, 4)
	got, err = Measure(f.lm, frame, DefaultConfig())
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("Expected ErrDegenerateGeometry, got %v", err)
	}
	if got.MouthOpenness != 12.5 || got.LeftEAR != 0.25 {
		t.Errorf("Expected partial metrics, got %+v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}

	cfg := DefaultConfig()
	cfg.EARThreshold = -0.1
	if cfg.Validate() == nil {
		t.Error("Expected error for negative EAR threshold")
	}

	cfg = DefaultConfig()
	cfg.MouthOpenThreshold = -1
	if cfg.Validate() == nil {
		t.Error("Expected error for negative mouth threshold")
	}

	cfg = DefaultConfig()
	cfg.Topology.LeftEye[3] = 5000
	if err := cfg.Validate(); !errors.Is(err, facemesh.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}
