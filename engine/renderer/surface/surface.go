// Package surface owns every render target of the pipeline.
//
// The Manager is the only component that creates, reallocates or frees surface textures. Other
// components hold Handles, which the manager resolves to backend textures on demand.
package surface

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
)

var (
	// ErrAllocation is returned when a surface cannot be created with the requested descriptor.
	ErrAllocation = errors.New("surface allocation failed")
	// ErrStaleHandle is returned for unbound, released or resized-away handles.
	ErrStaleHandle = errors.New("stale surface handle")
	// ErrIncompatibleAttachment is returned when a surface does not fit a frame buffer slot.
	ErrIncompatibleAttachment = errors.New("incompatible attachment")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("surface manager closed")
)

// Descriptor describes a surface.
type Descriptor struct {
	Label  string
	Width  int
	Height int
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
	// FollowOutput surfaces are reallocated at the new output size by Resize.
	FollowOutput bool
}

// entry is one arena slot.
type entry struct {
	desc       Descriptor
	texture    backend.Texture
	generation uint32
	live       bool
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu *sync.Mutex

	backend backend.Backend
	caps    backend.Capabilities

	entries []entry
	free    []uint32
	// order lists live entries in allocation order. Resize walks it front to back.
	order []uint32

	frameBuffers []*FrameBuffer
	inFrame      bool
	retired      []backend.Texture
	closed       bool
}

// Manager allocates, resizes and releases render target surfaces.
//
// Surfaces are stored in an arena and referenced by generation-checked handles. A resize
// reallocates every surface that follows the output size, in allocation order, and re-points the
// frame buffers that referenced them. Textures replaced while a frame is in flight are released
// when the frame ends.
type Manager interface {
	// Allocate creates a surface.
	//
	// Parameters:
	//   - desc: the surface size, format and usage
	//
	// Returns:
	//   - Handle: the handle of the new surface
	//   - error: ErrAllocation if the size is invalid, the format/usage pair is not supported by
	//     the device, or the backend fails to create the texture
	Allocate(desc Descriptor) (Handle, error)

	// NewFrameBuffer creates an empty frame buffer tracked by the manager.
	//
	// Parameters:
	//   - label: the frame buffer name used in errors and logs
	//
	// Returns:
	//   - *FrameBuffer: the new frame buffer
	NewFrameBuffer(label string) *FrameBuffer

	// Attach binds a surface to a frame buffer slot.
	// Color slots take color formats and the DepthStencil slot takes depth formats. Every attached
	// surface must share the size of the surfaces already attached.
	//
	// Parameters:
	//   - fb: the frame buffer to modify
	//   - slot: the slot to bind
	//   - h: the surface to bind
	//
	// Returns:
	//   - error: ErrStaleHandle or ErrIncompatibleAttachment
	Attach(fb *FrameBuffer, slot Slot, h Handle) error

	// Detach clears a frame buffer slot.
	Detach(fb *FrameBuffer, slot Slot)

	// Resize reallocates every FollowOutput surface at the new size, in allocation order.
	// Handles to reallocated surfaces become stale; frame buffer attachments are updated in place.
	// On failure no surface is changed.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrAllocation if any replacement cannot be created
	Resize(width, height int) error

	// Current returns the up-to-date handle for a possibly resized-away handle, matching on the
	// arena slot. It fails if the slot was released.
	Current(h Handle) (Handle, error)

	// Describe returns the descriptor of a surface.
	Describe(h Handle) (Descriptor, error)

	// Texture resolves a handle to the backend texture.
	Texture(h Handle) (backend.Texture, error)

	// RenderTarget resolves a frame buffer to backend textures.
	// Color attachments must be contiguous from Color0.
	//
	// Parameters:
	//   - fb: the frame buffer to resolve
	//
	// Returns:
	//   - *backend.RenderTarget: the textures to bind
	//   - error: ErrStaleHandle or ErrIncompatibleAttachment
	RenderTarget(fb *FrameBuffer) (*backend.RenderTarget, error)

	// Release frees a surface and clears every frame buffer slot referencing it.
	Release(h Handle) error

	// BeginFrame marks a frame in flight. Textures retired from now on are kept alive until EndFrame.
	BeginFrame()

	// EndFrame releases every texture retired during the frame.
	EndFrame()

	// Live returns the number of live surfaces.
	Live() int

	// Retired returns the number of textures awaiting release at the end of the frame.
	Retired() int

	// Close frees every surface. The manager is unusable afterwards.
	Close()
}

var _ Manager = &manager{}

// NewManager creates a Manager that allocates through the given backend.
// The backend capabilities are read once here and used to validate every allocation.
//
// Parameters:
//   - b: the backend that creates and frees textures
//
// Returns:
//   - Manager: the new surface manager
func NewManager(b backend.Backend) Manager {
	return &manager{
		mu:      &sync.Mutex{},
		backend: b,
		caps:    b.Capabilities(),
	}
}

func (m *manager) Allocate(desc Descriptor) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Handle{}, ErrClosed
	}

	tex, err := m.create(desc)
	if err != nil {
		return Handle{}, err
	}

	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		idx = uint32(len(m.entries))
		m.entries = append(m.entries, entry{})
	}

	e := &m.entries[idx]
	e.desc = desc
	e.texture = tex
	e.generation++
	e.live = true
	m.order = append(m.order, idx)

	h := Handle{index: idx, generation: e.generation}
	logger.Log().Debug("surface allocated",
		zap.String("label", desc.Label),
		zap.Stringer("handle", h),
		zap.Int("width", desc.Width),
		zap.Int("height", desc.Height),
		zap.Any("format", desc.Format),
	)
	return h, nil
}

func (m *manager) create(desc Descriptor) (backend.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, errors.Wrapf(ErrAllocation, "surface %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if !m.caps.Supports(desc.Format, desc.Usage) {
		return nil, errors.WithHintf(
			errors.Wrapf(ErrAllocation, "surface %q: format %v does not support usage %#x", desc.Label, desc.Format, uint64(desc.Usage)),
			"the device does not support %s with the requested usage", desc.Format,
		)
	}

	tex, err := m.backend.CreateTexture(backend.TextureDescriptor{
		Label:  desc.Label,
		Width:  desc.Width,
		Height: desc.Height,
		Format: desc.Format,
		Usage:  desc.Usage,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "surface %q", desc.Label), ErrAllocation)
	}
	return tex, nil
}

func (m *manager) NewFrameBuffer(label string) *FrameBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	fb := &FrameBuffer{label: label}
	m.frameBuffers = append(m.frameBuffers, fb)
	return fb
}

func (m *manager) Attach(fb *FrameBuffer, slot Slot, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !slot.valid() {
		return errors.Wrapf(ErrIncompatibleAttachment, "frame buffer %q has no slot %s", fb.label, slot)
	}
	e, err := m.lookup(h)
	if err != nil {
		return errors.Wrapf(err, "attach %s to %q", slot, fb.label)
	}

	isDepth := e.desc.Format.IsDepthStencil()
	switch {
	case slot.IsColor() && isDepth:
		return errors.Wrapf(ErrIncompatibleAttachment, "frame buffer %q: depth format %v in %s", fb.label, e.desc.Format, slot)
	case slot == SlotDepthStencil && !isDepth:
		return errors.Wrapf(ErrIncompatibleAttachment, "frame buffer %q: color format %v in %s", fb.label, e.desc.Format, slot)
	}
	if !e.desc.Usage.Contains(gputypes.TextureUsageRenderAttachment) {
		return errors.Wrapf(ErrIncompatibleAttachment, "frame buffer %q: surface %q lacks render attachment usage", fb.label, e.desc.Label)
	}

	for s, other := range fb.slots {
		if Slot(s) == slot || other.IsZero() {
			continue
		}
		oe, err := m.lookup(other)
		if err != nil {
			continue
		}
		if oe.desc.Width != e.desc.Width || oe.desc.Height != e.desc.Height {
			return errors.Wrapf(ErrIncompatibleAttachment, "frame buffer %q: %s is %dx%d but %s is %dx%d",
				fb.label, slot, e.desc.Width, e.desc.Height, Slot(s), oe.desc.Width, oe.desc.Height)
		}
	}

	fb.slots[slot] = h
	return nil
}

func (m *manager) Detach(fb *FrameBuffer, slot Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slot.valid() {
		fb.slots[slot] = Handle{}
	}
}

func (m *manager) Resize(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrAllocation, "resize to invalid size %dx%d", width, height)
	}

	type replacement struct {
		index   uint32
		desc    Descriptor
		texture backend.Texture
	}
	var replaced []replacement
	for _, idx := range m.order {
		e := m.entries[idx]
		if !e.desc.FollowOutput {
			continue
		}
		desc := e.desc
		desc.Width, desc.Height = width, height
		tex, err := m.create(desc)
		if err != nil {
			for _, r := range replaced {
				m.backend.ReleaseTexture(r.texture)
			}
			return errors.Wrapf(err, "resize to %dx%d", width, height)
		}
		replaced = append(replaced, replacement{index: idx, desc: desc, texture: tex})
	}

	remap := make(map[uint32]Handle, len(replaced))
	for _, r := range replaced {
		e := &m.entries[r.index]
		m.retire(e.texture)
		e.desc = r.desc
		e.texture = r.texture
		e.generation++
		remap[r.index] = Handle{index: r.index, generation: e.generation}
	}
	for _, fb := range m.frameBuffers {
		for s, h := range fb.slots {
			if nh, ok := remap[h.index]; ok && !h.IsZero() {
				fb.slots[s] = nh
			}
		}
	}

	logger.Log().Debug("surfaces resized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("reallocated", len(replaced)),
		zap.Int("retired", len(m.retired)),
	)
	return nil
}

func (m *manager) Current(h Handle) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.IsZero() || int(h.index) >= len(m.entries) || !m.entries[h.index].live {
		return Handle{}, errors.Wrapf(ErrStaleHandle, "%s", h)
	}
	return Handle{index: h.index, generation: m.entries[h.index].generation}, nil
}

func (m *manager) Describe(h Handle) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return Descriptor{}, err
	}
	return e.desc, nil
}

func (m *manager) Texture(h Handle) (backend.Texture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	return e.texture, nil
}

func (m *manager) RenderTarget(fb *FrameBuffer) (*backend.RenderTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := &backend.RenderTarget{Label: fb.label}
	gap := false
	for s := SlotColor0; s <= SlotColor3; s++ {
		h := fb.slots[s]
		if h.IsZero() {
			gap = true
			continue
		}
		if gap {
			return nil, errors.Wrapf(ErrIncompatibleAttachment, "frame buffer %q: %s bound after an empty color slot", fb.label, s)
		}
		e, err := m.lookup(h)
		if err != nil {
			return nil, errors.Wrapf(err, "frame buffer %q %s", fb.label, s)
		}
		target.Colors = append(target.Colors, e.texture)
	}
	if h := fb.slots[SlotDepthStencil]; !h.IsZero() {
		e, err := m.lookup(h)
		if err != nil {
			return nil, errors.Wrapf(err, "frame buffer %q %s", fb.label, SlotDepthStencil)
		}
		target.DepthStencil = e.texture
	}
	return target, nil
}

func (m *manager) Release(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(h)
	if err != nil {
		return err
	}
	m.retire(e.texture)
	e.texture = nil
	e.live = false
	m.free = append(m.free, h.index)
	m.order = slices.DeleteFunc(m.order, func(idx uint32) bool { return idx == h.index })

	for _, fb := range m.frameBuffers {
		for s, bound := range fb.slots {
			if bound == h {
				fb.slots[s] = Handle{}
			}
		}
	}
	return nil
}

func (m *manager) BeginFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFrame = true
}

func (m *manager) EndFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFrame = false
	for _, t := range m.retired {
		m.backend.ReleaseTexture(t)
	}
	m.retired = m.retired[:0]
}

func (m *manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.order)
}

func (m *manager) Retired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.retired)
}

func (m *manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	for _, idx := range m.order {
		m.backend.ReleaseTexture(m.entries[idx].texture)
		m.entries[idx] = entry{generation: m.entries[idx].generation}
	}
	for _, t := range m.retired {
		m.backend.ReleaseTexture(t)
	}
	m.order = nil
	m.retired = nil
	m.frameBuffers = nil
	m.closed = true
}

// lookup resolves a handle. The caller must hold m.mu.
func (m *manager) lookup(h Handle) (*entry, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if h.IsZero() {
		return nil, errors.Wrap(ErrStaleHandle, "unbound handle")
	}
	if int(h.index) >= len(m.entries) {
		return nil, errors.Wrapf(ErrStaleHandle, "%s out of range", h)
	}
	e := &m.entries[h.index]
	if !e.live || e.generation != h.generation {
		return nil, errors.Wrapf(ErrStaleHandle, "%s (current generation %d)", h, e.generation)
	}
	return e, nil
}

// retire releases a texture now, or at EndFrame if a frame is in flight. The caller must hold m.mu.
func (m *manager) retire(t backend.Texture) {
	if t == nil {
		return
	}
	if m.inFrame {
		m.retired = append(m.retired, t)
		return
	}
	m.backend.ReleaseTexture(t)
}
