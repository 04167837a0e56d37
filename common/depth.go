package common

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNotPerspective is returned when clip planes are requested from a matrix that is not a
// perspective projection.
var ErrNotPerspective = errors.New("projection is not a perspective matrix")

// DepthParams is the near/far/inverse-far triple used to pack linear view depth into the
// normal-depth G-buffer surface. The same triple must be used by the writer (G-buffer pass)
// and by every effect that decodes the surface.
type DepthParams struct {
	Near   float32
	Far    float32
	InvFar float32
}

// NewDepthParams builds the triple for a camera's clip planes.
//
// Parameters:
//   - near: distance to the near clip plane, must be > 0
//   - far: distance to the far clip plane, must be > near
//
// Returns:
//   - DepthParams: the packed near/far/inverse-far triple
func NewDepthParams(near, far float32) DepthParams {
	inv := float32(0)
	if far != 0 {
		inv = 1 / far
	}
	return DepthParams{Near: near, Far: far, InvFar: inv}
}

// Vec3 returns the triple as a vector, laid out as the shader uniform expects it.
func (d DepthParams) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{d.Near, d.Far, d.InvFar}
}

// Encode converts a view-space z coordinate (negative in front of a right-handed camera)
// into the normalized value stored in the G-buffer: eye distance times InvFar, clamped to [0, 1].
func (d DepthParams) Encode(viewZ float32) float32 {
	return Clamp(-viewZ*d.InvFar, 0, 1)
}

// Decode converts a stored G-buffer depth back into a positive eye distance.
func (d DepthParams) Decode(stored float32) float32 {
	return stored * d.Far
}

// EncodeNormal maps a unit view-space normal from [-1, 1] into [0, 1] for storage.
func EncodeNormal(n mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{n[0]*0.5 + 0.5, n[1]*0.5 + 0.5, n[2]*0.5 + 0.5}
}

// DecodeNormal reverses EncodeNormal and renormalizes the result.
func DecodeNormal(e mgl32.Vec3) mgl32.Vec3 {
	n := mgl32.Vec3{e[0]*2 - 1, e[1]*2 - 1, e[2]*2 - 1}
	if n.LenSqr() == 0 {
		return n
	}
	return n.Normalize()
}

// DepthParamsFromProjection recovers the clip planes of an OpenGL-style perspective matrix,
// such as one built by mgl32.Perspective.
//
// Parameters:
//   - proj: the perspective projection matrix
//
// Returns:
//   - DepthParams: the triple for the matrix's near and far planes
//   - error: ErrNotPerspective for orthographic, identity or degenerate matrices
func DepthParamsFromProjection(proj mgl32.Mat4) (DepthParams, error) {
	if proj[11] != -1 || proj[15] != 0 {
		return DepthParams{}, errors.Wrapf(ErrNotPerspective, "w row is (%v, %v)", proj[11], proj[15])
	}
	a, b := proj[10], proj[14]
	if a == 1 || a == -1 {
		return DepthParams{}, errors.Wrap(ErrNotPerspective, "infinite clip plane")
	}
	near, far := b/(a-1), b/(a+1)
	if !(near > 0) || !(far > near) {
		return DepthParams{}, errors.Wrapf(ErrNotPerspective, "clip planes near %v far %v", near, far)
	}
	return NewDepthParams(near, far), nil
}
