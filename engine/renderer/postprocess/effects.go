package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
)

// Names of the built-in effects.
const (
	EffectCopy            = "copy"
	EffectDeferredShading = "deferred_shading"
	EffectAsciiArts       = "ascii_arts"
	EffectCartoon         = "cartoon"
	EffectTiling          = "tiling"
	EffectToneMap         = "tonemap"
	EffectNightVision     = "night_vision"
	EffectOldFashion      = "old_fashion"
)

// Lighting defaults shared by the lit effects.
const (
	defaultAmbient   = 0.15
	defaultShininess = 32
)

// lightingParams lays out the parameters read by the lit effects:
// light xyz, far, projection x scale, projection y scale, ambient, shininess, then extra.
func lightingParams(extra ...float32) ParamFunc {
	return func(s FrameState) []float32 {
		p := []float32{
			s.LightInEye[0], s.LightInEye[1], s.LightInEye[2],
			s.Depth.Far,
			s.Projection[0], s.Projection[5],
			defaultAmbient, defaultShininess,
		}
		return append(p, extra...)
	}
}

// timeParams passes the elapsed time in seconds followed by extra values.
func timeParams(extra ...float32) ParamFunc {
	return func(s FrameState) []float32 {
		return append([]float32{float32(s.Elapsed.Seconds())}, extra...)
	}
}

// constParams passes fixed values.
func constParams(values ...float32) ParamFunc {
	return func(FrameState) []float32 {
		return values
	}
}

// Standard is a built-in effect with the sources its pins read.
type Standard struct {
	Effect   Effect
	Bindings []PinBinding
}

// StandardEffects builds every built-in effect. Deferred shading comes first and is the
// default active effect once registered.
//
// Parameters:
//   - b: the backend effects draw with
//   - m: the manager resolving pin handles
//
// Returns:
//   - []Standard: the effects with their pin bindings, in registration order
func StandardEffects(b backend.Backend, m surface.Manager) []Standard {
	color := []PinBinding{{Pin: 0, Source: SourceColor}}
	lit := []PinBinding{{Pin: 0, Source: SourceNormalDepth}, {Pin: 1, Source: SourceColor}}

	return []Standard{
		{NewDeferredShadingEffect(b, m), lit},
		{NewCopyEffect(b, m), color},
		{NewAsciiArtsEffect(b, m, 8), color},
		{NewCartoonEffect(b, m, 0.4), lit},
		{NewTilingEffect(b, m, 8), color},
		{NewToneMapEffect(b, m, 1.5), color},
		{NewNightVisionEffect(b, m), color},
		{NewOldFashionEffect(b, m), color},
	}
}

// RegisterStandardEffects registers every built-in effect with a graph.
func RegisterStandardEffects(g Graph, b backend.Backend, m surface.Manager) error {
	for _, s := range StandardEffects(b, m) {
		if err := g.Register(s.Effect, s.Bindings...); err != nil {
			return err
		}
	}
	return nil
}
