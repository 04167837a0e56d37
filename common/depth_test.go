package common

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

func TestDepthParamsRoundTrip(t *testing.T) {
	d := NewDepthParams(0.1, 100)

	tests := []struct {
		name  string
		viewZ float32
		want  float32
	}{
		{name: "camera plane", viewZ: 0, want: 0},
		{name: "mid range", viewZ: -50, want: 0.5},
		{name: "far plane", viewZ: -100, want: 1},
		{name: "beyond far clamps", viewZ: -250, want: 1},
		{name: "behind camera clamps", viewZ: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Encode(tt.viewZ)
			if mgl32.Abs(got-tt.want) > 1e-5 {
				t.Errorf("Encode(%v) = %v, want %v", tt.viewZ, got, tt.want)
			}
		})
	}

	if got := d.Decode(d.Encode(-37.5)); mgl32.Abs(got-37.5) > 1e-4 {
		t.Errorf("Decode(Encode(-37.5)) = %v, want 37.5", got)
	}
}

func TestDepthParamsFromProjection(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(45), 4.0/3.0, 0.5, 200)
	d, err := DepthParamsFromProjection(proj)
	if err != nil {
		t.Fatalf("DepthParamsFromProjection() failed: %v", err)
	}

	if mgl32.Abs(d.Near-0.5) > 1e-4 || mgl32.Abs(d.Far-200) > 1e-1 {
		t.Errorf("DepthParamsFromProjection() = %+v, want near 0.5 far 200", d)
	}
	if mgl32.Abs(d.InvFar-(1.0/200)) > 1e-5 {
		t.Errorf("InvFar = %v, want %v", d.InvFar, 1.0/200)
	}
}

func TestDepthParamsFromProjectionRejectsNonPerspective(t *testing.T) {
	tests := []struct {
		name string
		proj mgl32.Mat4
	}{
		{"identity", mgl32.Ident4()},
		{"orthographic", mgl32.Ortho(-1, 1, -1, 1, 0.1, 100)},
		{"zero", mgl32.Mat4{}},
		{"far behind near", mgl32.Perspective(1, 1, 10, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DepthParamsFromProjection(tt.proj); !errors.Is(err, ErrNotPerspective) {
				t.Errorf("DepthParamsFromProjection() error = %v, want ErrNotPerspective", err)
			}
		})
	}
}

func TestNormalCodec(t *testing.T) {
	normals := []mgl32.Vec3{
		{0, 0, 1},
		{0, 0, -1},
		{1, 0, 0},
		mgl32.Vec3{1, 1, 1}.Normalize(),
	}

	for _, n := range normals {
		e := EncodeNormal(n)
		for i := range 3 {
			if e[i] < 0 || e[i] > 1 {
				t.Errorf("EncodeNormal(%v)[%d] = %v, outside [0, 1]", n, i, e[i])
			}
		}
		if got := DecodeNormal(e); got.Sub(n).Len() > 1e-5 {
			t.Errorf("DecodeNormal(EncodeNormal(%v)) = %v", n, got)
		}
	}
}
