package gbuffer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// ColorFormat is the format of the color and normal-depth surfaces.
const ColorFormat = gputypes.TextureFormatRGBA16Float

// SurfaceUsage is the usage every G-buffer surface is allocated with: written by the G-buffer
// pass, sampled by effects.
const SurfaceUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding

// DepthFormats lists the depth-stencil formats the layout accepts, most precise first.
var DepthFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatDepth32Float,
	gputypes.TextureFormatDepth24Plus,
	gputypes.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth16Unorm,
}

// PickDepthFormat returns the first entry of DepthFormats the device supports with SurfaceUsage.
func PickDepthFormat(caps backend.Capabilities) (gputypes.TextureFormat, bool) {
	for _, f := range DepthFormats {
		if caps.Supports(f, SurfaceUsage) {
			return f, true
		}
	}
	return gputypes.TextureFormatUndefined, false
}

// Layout is the set of surfaces the G-buffer pass writes.
//
// Color0 holds diffuse rgb and specular intensity, Color1 holds the encoded view normal and the
// normalized linear depth, DepthStencil holds hardware depth. Accessors read through the frame
// buffer, so they return current handles after a resize.
type Layout struct {
	fb *surface.FrameBuffer
}

// NewLayout allocates the G-buffer surfaces in their fixed order (color, normal-depth,
// depth-stencil) and binds them to a frame buffer.
//
// Parameters:
//   - m: the surface manager to allocate from
//   - caps: the probed device capabilities
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - *Layout: the bound layout
//   - error: surface.ErrAllocation if any surface cannot be created
func NewLayout(m surface.Manager, caps backend.Capabilities, width, height int) (*Layout, error) {
	depthFormat, ok := PickDepthFormat(caps)
	if !ok {
		return nil, errors.WithHint(
			errors.Wrap(surface.ErrAllocation, "gbuffer depth-stencil"),
			"the device supports none of the G-buffer depth formats as a sampled render attachment",
		)
	}

	fb := m.NewFrameBuffer("G-Buffer")
	surfaces := []struct {
		slot surface.Slot
		desc surface.Descriptor
	}{
		{surface.SlotColor0, surface.Descriptor{Label: "G-Buffer Color", Format: ColorFormat}},
		{surface.SlotColor1, surface.Descriptor{Label: "G-Buffer Normal Depth", Format: ColorFormat}},
		{surface.SlotDepthStencil, surface.Descriptor{Label: "G-Buffer Depth Stencil", Format: depthFormat}},
	}

	var allocated []surface.Handle
	for _, s := range surfaces {
		s.desc.Width, s.desc.Height = width, height
		s.desc.Usage = SurfaceUsage
		s.desc.FollowOutput = true

		h, err := m.Allocate(s.desc)
		if err == nil {
			err = m.Attach(fb, s.slot, h)
			allocated = append(allocated, h)
		}
		if err != nil {
			for _, a := range allocated {
				_ = m.Release(a)
			}
			return nil, errors.Wrapf(err, "gbuffer %s", s.slot)
		}
	}

	return &Layout{fb: fb}, nil
}

// FrameBuffer returns the frame buffer the G-buffer pass renders into.
func (l *Layout) FrameBuffer() *surface.FrameBuffer {
	return l.fb
}

// Color returns the diffuse/specular surface.
func (l *Layout) Color() surface.Handle {
	return l.fb.Attachment(surface.SlotColor0)
}

// NormalDepth returns the normal/linear-depth surface.
func (l *Layout) NormalDepth() surface.Handle {
	return l.fb.Attachment(surface.SlotColor1)
}

// DepthStencil returns the hardware depth surface.
func (l *Layout) DepthStencil() surface.Handle {
	return l.fb.Attachment(surface.SlotDepthStencil)
}

// Release frees every surface of the layout.
func (l *Layout) Release(m surface.Manager) {
	for _, h := range []surface.Handle{l.Color(), l.NormalDepth(), l.DepthStencil()} {
		if !h.IsZero() {
			_ = m.Release(h)
		}
	}
}
