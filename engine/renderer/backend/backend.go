// Package backend defines the boundary between the render pipeline and a graphics API.
//
// The pipeline never talks to a GPU API directly. Surfaces, passes and effects reach the
// device through the Backend interface, which is implemented by the software package (a CPU
// reference rasterizer used for tests and headless rendering) and the webgpu package.
package backend

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// MaxColorAttachments is the number of color slots a render target can expose.
const MaxColorAttachments = 4

// MaxFullscreenParams is the number of float parameters a fullscreen program can receive.
// GPU backends upload them as four vec4 values.
const MaxFullscreenParams = 16

var (
	// ErrUnsupportedFormat is returned when a texture format/usage combination is not supported.
	ErrUnsupportedFormat = errors.New("unsupported texture format or usage")
	// ErrNoFrame is returned when a pass is started outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("no frame in flight")
	// ErrFrameInFlight is returned when BeginFrame is called twice without EndFrame.
	ErrFrameInFlight = errors.New("frame already in flight")
	// ErrNoPass is returned when a draw or EndPass is issued with no bound pass.
	ErrNoPass = errors.New("no pass bound")
	// ErrPassActive is returned when a pass is begun while another is still bound.
	ErrPassActive = errors.New("pass already bound")
	// ErrReleased is returned when a released texture or mesh is used.
	ErrReleased = errors.New("resource already released")
	// ErrFeedbackLoop is returned when a fullscreen input is also the bound output.
	ErrFeedbackLoop = errors.New("texture is both input and output of the pass")
)

// TextureDescriptor describes a texture to allocate.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// Texture is a backend-owned image resource. Only the surface manager creates and releases textures.
type Texture interface {
	Label() string
	Width() int
	Height() int
	Format() gputypes.TextureFormat
	Usage() gputypes.TextureUsage
}

// MeshData is an indexed triangle list in object space.
type MeshData struct {
	Label     string
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
}

// Mesh is a mesh uploaded to the backend.
type Mesh interface {
	Label() string
	IndexCount() int
}

// ClearFlags selects which aspects of a render target a pass clears.
type ClearFlags uint8

const (
	// ClearColor clears every color attachment.
	ClearColor ClearFlags = 1 << iota
	// ClearDepth clears the depth aspect of the depth-stencil attachment.
	ClearDepth
	// ClearStencil clears the stencil aspect of the depth-stencil attachment.
	ClearStencil
)

// Has reports whether every flag in f is set.
func (c ClearFlags) Has(f ClearFlags) bool {
	return c&f == f
}

// ClearOp is the clear issued when a pass binds its target.
type ClearOp struct {
	Flags   ClearFlags
	Color   gputypes.Color
	Depth   float32
	Stencil uint32
}

// RenderTarget is the set of textures a pass renders into.
// A nil *RenderTarget passed to BeginPass selects the default output (the presentable surface
// and its own depth buffer).
type RenderTarget struct {
	Label        string
	Colors       []Texture
	DepthStencil Texture
}

// Capabilities is the structured result of the device capability probe.
type Capabilities struct {
	// MaxShaderModel is the highest shader model the device can run.
	MaxShaderModel int
	// MaxSimultaneousRenderTargets is the number of color attachments a single pass may write.
	MaxSimultaneousRenderTargets int
	// SupportedFormats maps each supported texture format to the usages allowed for it.
	SupportedFormats map[gputypes.TextureFormat]gputypes.TextureUsage
}

// Supports reports whether the format is supported with every requested usage flag.
func (c Capabilities) Supports(format gputypes.TextureFormat, usage gputypes.TextureUsage) bool {
	allowed, ok := c.SupportedFormats[format]
	if !ok {
		return false
	}
	return allowed.Contains(usage)
}

// Sampler is read access to a texture inside a CPU kernel.
type Sampler interface {
	Width() int
	Height() int
	// Load returns the texel at integer coordinates, clamped to the texture edge.
	Load(x, y int) mgl32.Vec4
	// Sample returns the nearest texel to normalized coordinates in [0, 1].
	Sample(u, v float32) mgl32.Vec4
}

// FullscreenKernel computes one output pixel of a fullscreen pass on the CPU.
type FullscreenKernel func(x, y int, inputs []Sampler, params []float32) mgl32.Vec4

// FullscreenProgram is a full-screen effect program. GPU backends compile WGSL; the software
// backend runs Kernel.
//
// WGSL programs receive a sampler at @group(0) @binding(0), input textures at
// @binding(1..n) in pin order, and the parameters as `array<vec4<f32>, 4>` at @group(1) @binding(0).
// The fragment entry point is `fs_main` and receives the pixel position as @builtin(position).
type FullscreenProgram struct {
	Key    string
	WGSL   string
	Kernel FullscreenKernel
}

// GeometryUniforms is the per-object uniform block of the G-buffer program.
// The layout matches the WGSL uniform struct: three mat4 followed by two vec4 (224 bytes).
type GeometryUniforms struct {
	ModelView mgl32.Mat4
	// Normal is the inverse-transpose of the upper 3x3 of ModelView, widened to a mat4.
	Normal mgl32.Mat4
	Proj   mgl32.Mat4
	// Depth holds near, far, 1/far and an unused w.
	Depth mgl32.Vec4
	// Material holds diffuse rgb and specular intensity.
	Material mgl32.Vec4
}

// GeometryFragment is the interpolated input of a G-buffer fragment on the CPU.
type GeometryFragment struct {
	ViewPosition mgl32.Vec3
	ViewNormal   mgl32.Vec3
	Uniforms     *GeometryUniforms
}

// GeometryShader writes one value per bound color attachment. len(out) equals the number of
// color attachments of the current target.
type GeometryShader func(in GeometryFragment, out []mgl32.Vec4)

// GeometryProgram draws meshes into the bound target. GPU backends compile WGSL with
// entry points `vs_main` and `fs_main`; the software backend runs Shade.
type GeometryProgram struct {
	Key   string
	WGSL  string
	Shade GeometryShader
}

// Backend is the device boundary used by the render pipeline.
//
// Calls are frame-synchronous: BeginFrame, then any number of BeginPass/draw/EndPass groups
// separated by Flush, then EndFrame. A Backend is not safe for concurrent use across frames;
// the pipeline drives it from a single goroutine.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Capabilities returns the device capability set. It is probed once when the backend is created.
	//
	// Returns:
	//   - Capabilities: the shader model, render target count and supported formats
	Capabilities() Capabilities

	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the size, format and usage of the texture
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: ErrUnsupportedFormat or a device error
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// ReleaseTexture frees a texture. Releasing twice is a no-op.
	ReleaseTexture(t Texture)

	// UploadMesh copies mesh data to the device.
	UploadMesh(data MeshData) (Mesh, error)

	// ReleaseMesh frees an uploaded mesh.
	ReleaseMesh(m Mesh)

	// ConfigureOutput (re)creates the default output at the given size.
	//
	// Parameters:
	//   - width: output width in pixels
	//   - height: output height in pixels
	//
	// Returns:
	//   - error: an error if the output could not be configured
	ConfigureOutput(width, height int) error

	// OutputSize returns the current default output size.
	OutputSize() (width, height int)

	// BeginFrame starts a frame, acquiring the presentable output.
	BeginFrame() error

	// BeginPass binds a render target (nil = default output) and performs the clear.
	//
	// Parameters:
	//   - target: the textures to render into, or nil for the default output
	//   - clear: which aspects to clear and the clear values
	//
	// Returns:
	//   - error: ErrNoFrame, ErrPassActive, ErrReleased or a device error
	BeginPass(target *RenderTarget, clear ClearOp) error

	// DrawMesh draws a mesh into the bound target with the geometry program.
	DrawMesh(mesh Mesh, program GeometryProgram, uniforms GeometryUniforms) error

	// DrawFullscreen runs a fullscreen program reading inputs and writing the first color
	// attachment of the bound target.
	DrawFullscreen(program FullscreenProgram, inputs []Texture, params []float32) error

	// EndPass ends the bound pass.
	EndPass() error

	// Flush submits every command recorded so far. Textures written by earlier passes are safe
	// to read after Flush returns.
	Flush() error

	// EndFrame submits outstanding work and presents the default output.
	EndFrame() error

	// Release frees every device resource held by the backend.
	Release()
}
