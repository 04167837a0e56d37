package surface

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend/software"
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

const targetUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding

// gbufferLayout allocates the three-surface layout used by the deferred pipeline and binds it.
func gbufferLayout(t *testing.T, m Manager, w, h int) (*FrameBuffer, []Handle) {
	t.Helper()
	descs := []Descriptor{
		{Label: "color", Width: w, Height: h, Format: gputypes.TextureFormatRGBA16Float, Usage: targetUsage, FollowOutput: true},
		{Label: "normal-depth", Width: w, Height: h, Format: gputypes.TextureFormatRGBA16Float, Usage: targetUsage, FollowOutput: true},
		{Label: "depth-stencil", Width: w, Height: h, Format: gputypes.TextureFormatDepth32Float, Usage: targetUsage, FollowOutput: true},
	}
	slots := []Slot{SlotColor0, SlotColor1, SlotDepthStencil}

	fb := m.NewFrameBuffer("gbuffer")
	handles := make([]Handle, len(descs))
	for i, d := range descs {
		hd, err := m.Allocate(d)
		if err != nil {
			t.Fatalf("Allocate(%s) failed: %v", d.Label, err)
		}
		if err := m.Attach(fb, slots[i], hd); err != nil {
			t.Fatalf("Attach(%s) failed: %v", slots[i], err)
		}
		handles[i] = hd
	}
	return fb, handles
}

func TestAllocateValidation(t *testing.T) {
	b := software.NewSoftwareBackend(software.WithoutFormat(gputypes.TextureFormatRGBA32Float))
	m := NewManager(b)

	tests := []struct {
		name     string
		desc     Descriptor
		wantHint bool
	}{
		{name: "zero width", desc: Descriptor{Width: 0, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: targetUsage}},
		{name: "negative height", desc: Descriptor{Width: 4, Height: -1, Format: gputypes.TextureFormatRGBA8Unorm, Usage: targetUsage}},
		{name: "unsupported format", desc: Descriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA32Float, Usage: targetUsage}, wantHint: true},
		{name: "unsupported usage", desc: Descriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageStorageBinding}, wantHint: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := m.Allocate(tt.desc)
			if !errors.Is(err, ErrAllocation) {
				t.Fatalf("Allocate() error = %v, want ErrAllocation", err)
			}
			if !h.IsZero() {
				t.Errorf("Allocate() handle = %v, want zero", h)
			}
			if got := len(errors.GetAllHints(err)) > 0; got != tt.wantHint {
				t.Errorf("hints present = %v, want %v", got, tt.wantHint)
			}
		})
	}

	if got := b.Stats().TexturesCreated; got != 0 {
		t.Errorf("textures created = %d, want 0", got)
	}
}

func TestResizeReallocatesFollowingSurfaces(t *testing.T) {
	b := software.NewSoftwareBackend()
	m := NewManager(b)
	fb, handles := gbufferLayout(t, m, 80, 60)

	fixed, err := m.Allocate(Descriptor{Label: "lut", Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm, Usage: targetUsage})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Resize(128, 72); err != nil {
		t.Fatalf("Resize() failed: %v", err)
	}

	for i, old := range handles {
		if _, err := m.Describe(old); !errors.Is(err, ErrStaleHandle) {
			t.Errorf("handle %d after resize error = %v, want ErrStaleHandle", i, err)
		}
		cur, err := m.Current(old)
		if err != nil {
			t.Fatalf("Current(%v) failed: %v", old, err)
		}
		d, err := m.Describe(cur)
		if err != nil {
			t.Fatal(err)
		}
		if d.Width != 128 || d.Height != 72 {
			t.Errorf("%s is %dx%d, want 128x72", d.Label, d.Width, d.Height)
		}
		tex, err := m.Texture(cur)
		if err != nil {
			t.Fatal(err)
		}
		if tex.Width() != 128 || tex.Height() != 72 {
			t.Errorf("%s texture is %dx%d, want 128x72", d.Label, tex.Width(), tex.Height())
		}
	}

	for i, s := range []Slot{SlotColor0, SlotColor1, SlotDepthStencil} {
		cur, _ := m.Current(handles[i])
		if got := fb.Attachment(s); got != cur {
			t.Errorf("%s = %v, want %v", s, got, cur)
		}
	}

	d, err := m.Describe(fixed)
	if err != nil {
		t.Fatalf("fixed-size surface handle went stale: %v", err)
	}
	if d.Width != 16 || d.Height != 16 {
		t.Errorf("fixed-size surface resized to %dx%d", d.Width, d.Height)
	}
}

func TestResizeRoundTripRestoresLayout(t *testing.T) {
	b := software.NewSoftwareBackend()
	m := NewManager(b)
	fb, _ := gbufferLayout(t, m, 800, 600)

	layout := func() []Descriptor {
		var out []Descriptor
		for _, s := range []Slot{SlotColor0, SlotColor1, SlotDepthStencil} {
			d, err := m.Describe(fb.Attachment(s))
			if err != nil {
				t.Fatalf("Describe(%s) failed: %v", s, err)
			}
			out = append(out, d)
		}
		return out
	}
	before := layout()

	for _, size := range [][2]int{{1280, 720}, {800, 600}} {
		if err := m.Resize(size[0], size[1]); err != nil {
			t.Fatalf("Resize(%v) failed: %v", size, err)
		}
	}

	after := layout()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("slot %d: %+v, want %+v", i, after[i], before[i])
		}
	}
	if got := m.Live(); got != 3 {
		t.Errorf("Live() = %d, want 3", got)
	}
	if s := b.Stats(); s.LiveTextures != 3 {
		t.Errorf("backend live textures = %d, want 3", s.LiveTextures)
	}
}

func TestResizeDuringFrameDefersRelease(t *testing.T) {
	b := software.NewSoftwareBackend()
	m := NewManager(b)
	gbufferLayout(t, m, 32, 32)

	m.BeginFrame()
	if err := m.Resize(64, 64); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().TexturesReleased; got != 0 {
		t.Errorf("released during frame = %d, want 0", got)
	}
	if got := m.Retired(); got != 3 {
		t.Errorf("Retired() = %d, want 3", got)
	}

	m.EndFrame()
	if got := b.Stats().TexturesReleased; got != 3 {
		t.Errorf("released after EndFrame = %d, want 3", got)
	}
	if got := m.Retired(); got != 0 {
		t.Errorf("Retired() after EndFrame = %d, want 0", got)
	}

	if err := m.Resize(32, 32); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().TexturesReleased; got != 6 {
		t.Errorf("released outside frame = %d, want 6", got)
	}
}

func TestResizeRejectsInvalidSize(t *testing.T) {
	m := NewManager(software.NewSoftwareBackend())
	_, handles := gbufferLayout(t, m, 8, 8)

	if err := m.Resize(0, 8); !errors.Is(err, ErrAllocation) {
		t.Errorf("Resize(0, 8) error = %v, want ErrAllocation", err)
	}
	if _, err := m.Describe(handles[0]); err != nil {
		t.Errorf("handle invalidated by failed resize: %v", err)
	}
}

func TestAttachRules(t *testing.T) {
	m := NewManager(software.NewSoftwareBackend())
	color, _ := m.Allocate(Descriptor{Label: "color", Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA16Float, Usage: targetUsage})
	depth, _ := m.Allocate(Descriptor{Label: "depth", Width: 8, Height: 8, Format: gputypes.TextureFormatDepth32Float, Usage: targetUsage})
	small, _ := m.Allocate(Descriptor{Label: "small", Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA16Float, Usage: targetUsage})
	sampled, _ := m.Allocate(Descriptor{Label: "sampled", Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA16Float, Usage: gputypes.TextureUsageTextureBinding})

	tests := []struct {
		name    string
		slot    Slot
		handle  Handle
		wantErr error
	}{
		{name: "depth in color slot", slot: SlotColor1, handle: depth, wantErr: ErrIncompatibleAttachment},
		{name: "color in depth slot", slot: SlotDepthStencil, handle: color, wantErr: ErrIncompatibleAttachment},
		{name: "size mismatch", slot: SlotColor1, handle: small, wantErr: ErrIncompatibleAttachment},
		{name: "not a render attachment", slot: SlotColor1, handle: sampled, wantErr: ErrIncompatibleAttachment},
		{name: "unbound handle", slot: SlotColor1, handle: Handle{}, wantErr: ErrStaleHandle},
		{name: "invalid slot", slot: Slot(9), handle: color, wantErr: ErrIncompatibleAttachment},
		{name: "depth in depth slot", slot: SlotDepthStencil, handle: depth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := m.NewFrameBuffer(tt.name)
			if err := m.Attach(fb, SlotColor0, color); err != nil {
				t.Fatal(err)
			}
			err := m.Attach(fb, tt.slot, tt.handle)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Attach() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Attach() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenderTargetResolution(t *testing.T) {
	m := NewManager(software.NewSoftwareBackend())
	fb, handles := gbufferLayout(t, m, 8, 8)

	target, err := m.RenderTarget(fb)
	if err != nil {
		t.Fatal(err)
	}
	if len(target.Colors) != 2 || target.DepthStencil == nil {
		t.Fatalf("target has %d colors, depth %v", len(target.Colors), target.DepthStencil)
	}
	if target.Colors[0].Label() != "color" || target.Colors[1].Label() != "normal-depth" {
		t.Errorf("color order = %q, %q", target.Colors[0].Label(), target.Colors[1].Label())
	}

	m.Detach(fb, SlotColor0)
	if _, err := m.RenderTarget(fb); !errors.Is(err, ErrIncompatibleAttachment) {
		t.Errorf("RenderTarget() with gap error = %v, want ErrIncompatibleAttachment", err)
	}

	if err := m.Release(handles[1]); err != nil {
		t.Fatal(err)
	}
	if got := fb.Attachment(SlotColor1); !got.IsZero() {
		t.Errorf("released surface still attached as %v", got)
	}
	if err := m.Release(handles[1]); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("double Release() error = %v, want ErrStaleHandle", err)
	}

	reused, err := m.Allocate(Descriptor{Label: "reused", Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm, Usage: targetUsage})
	if err != nil {
		t.Fatal(err)
	}
	if reused == handles[1] {
		t.Error("reallocated slot reused the released handle")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	b := software.NewSoftwareBackend()
	m := NewManager(b)
	gbufferLayout(t, m, 8, 8)

	m.BeginFrame()
	if err := m.Resize(16, 16); err != nil {
		t.Fatal(err)
	}
	m.Close()

	if s := b.Stats(); s.LiveTextures != 0 || s.TexturesReleased != 6 {
		t.Errorf("stats after Close = %+v", s)
	}
	if _, err := m.Allocate(Descriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm, Usage: targetUsage}); !errors.Is(err, ErrClosed) {
		t.Errorf("Allocate after Close error = %v, want ErrClosed", err)
	}
}
