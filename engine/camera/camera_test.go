package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestOrbitControllerPosition(t *testing.T) {
	tests := []struct {
		name    string
		options []CameraControllerOption
		want    mgl32.Vec3
	}{
		{
			name:    "in front of target",
			options: []CameraControllerOption{WithRadius(5), WithElevation(0)},
			want:    mgl32.Vec3{0, 0, 5},
		},
		{
			name:    "quarter turn",
			options: []CameraControllerOption{WithRadius(5), WithElevation(0), WithAzimuth(math.Pi / 2)},
			want:    mgl32.Vec3{5, 0, 0},
		},
		{
			name:    "offset target",
			options: []CameraControllerOption{WithRadius(2), WithElevation(0), WithTarget(mgl32.Vec3{1, 2, 3})},
			want:    mgl32.Vec3{1, 2, 5},
		},
		{
			name:    "radius clamped",
			options: []CameraControllerOption{WithRadius(500), WithElevation(0), WithRadiusBounds(1, 10)},
			want:    mgl32.Vec3{0, 0, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := NewOrbitController(tt.options...)
			if got := cc.Position(); got.Sub(tt.want).Len() > 1e-4 {
				t.Errorf("Position() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrbitClampsElevation(t *testing.T) {
	cc := NewOrbitController(WithElevationBounds(-0.5, 0.5), WithElevation(0))
	cc.Orbit(0, 2)
	if got := cc.Elevation(); got != 0.5 {
		t.Errorf("Elevation() = %v, want 0.5", got)
	}
	cc.Orbit(0.25, -4)
	if got := cc.Elevation(); got != -0.5 {
		t.Errorf("Elevation() = %v, want -0.5", got)
	}
	if got := cc.Azimuth(); got != 0.25 {
		t.Errorf("Azimuth() = %v, want 0.25", got)
	}
	if r := cc.Position().Sub(cc.Target()).Len(); mgl32.Abs(r-cc.Radius()) > 1e-4 {
		t.Errorf("distance to target = %v, want radius %v", r, cc.Radius())
	}
}

func TestCameraMatrices(t *testing.T) {
	cc := NewOrbitController(WithRadius(5), WithElevation(0))
	c := NewCamera(WithController(cc), WithAspect(2), WithClipPlanes(0.5, 50))

	// The target sits 5 units straight ahead.
	eye := c.View().Mul4x1(cc.Target().Vec4(1))
	if eye.Vec3().Sub(mgl32.Vec3{0, 0, -5}).Len() > 1e-4 {
		t.Errorf("target in view space = %v, want (0, 0, -5)", eye)
	}

	clip := c.ViewProjection().Mul4x1(cc.Target().Vec4(1))
	if ndc := clip.Vec3().Mul(1 / clip.W()); mgl32.Abs(ndc.X()) > 1e-5 || mgl32.Abs(ndc.Y()) > 1e-5 {
		t.Errorf("target projects to %v, want screen center", ndc)
	}

	d := c.Depth()
	if d.Near != 0.5 || d.Far != 50 {
		t.Errorf("Depth() = %+v, want near 0.5 far 50", d)
	}

	c.SetAspect(1)
	if p := c.Projection(); mgl32.Abs(p[0]-p[5]) > 1e-5 {
		t.Errorf("projection x scale %v != y scale %v at aspect 1", p[0], p[5])
	}

	cc.OrbitRight()
	before := c.View()
	c.Update()
	if c.View() == before {
		t.Error("Update() did not pick up the controller move")
	}
}

func TestCameraWithoutController(t *testing.T) {
	c := NewCamera()
	if c.View() != mgl32.Ident4() {
		t.Errorf("View() = %v, want identity", c.View())
	}
	c.Update()
	if c.View() != mgl32.Ident4() {
		t.Error("Update() without a controller changed the view")
	}
}
