package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/postprocess"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithTimer attaches a Timer that receives the duration of every pass.
//
// Parameters:
//   - t: the timer, typically the engine profiler
//
// Returns:
//   - RendererBuilderOption: a function that applies the timer option to a renderer
func WithTimer(t pass.Timer) RendererBuilderOption {
	return func(r *renderer) {
		r.timer = t
	}
}

// WithDefaultEffect sets the effect that is active once the renderer is created.
// When not specified, deferred shading is active.
//
// Parameters:
//   - name: the name of a built-in effect or one added with WithEffect
//
// Returns:
//   - RendererBuilderOption: a function that applies the default effect option to a renderer
func WithDefaultEffect(name string) RendererBuilderOption {
	return func(r *renderer) {
		r.defaultEffect = name
	}
}

// EffectFactory builds an effect once the renderer's backend and surface manager exist.
type EffectFactory func(b backend.Backend, m surface.Manager) postprocess.Effect

// WithEffect registers an additional effect after the built-in ones.
//
// Parameters:
//   - factory: builds the effect
//   - bindings: the G-buffer source of each pin
//
// Returns:
//   - RendererBuilderOption: a function that applies the effect option to a renderer
func WithEffect(factory EffectFactory, bindings ...postprocess.PinBinding) RendererBuilderOption {
	return func(r *renderer) {
		r.extraEffects = append(r.extraEffects, extraEffect{factory: factory, bindings: bindings})
	}
}

// WithScene sets the scene drawn by the G-buffer pass.
func WithScene(scene gbuffer.Scene) RendererBuilderOption {
	return func(r *renderer) {
		r.scene = scene
	}
}

// WithCamera sets the initial view and projection matrices.
//
// Parameters:
//   - view: the world to view transform
//   - proj: the perspective projection
//
// Returns:
//   - RendererBuilderOption: a function that applies the camera option to a renderer
func WithCamera(view, proj mgl32.Mat4) RendererBuilderOption {
	return func(r *renderer) {
		r.view = view
		r.proj = proj
	}
}

// WithLight sets the initial world-space light position.
func WithLight(position mgl32.Vec3) RendererBuilderOption {
	return func(r *renderer) {
		r.light = position
	}
}

// WithPresentClearColor sets the color the default output is cleared to before the effect is applied.
func WithPresentClearColor(c gputypes.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.presentClear = c
	}
}
