package postprocess

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
)

// ErrDeviceCapability is returned when the device cannot run the pipeline.
var ErrDeviceCapability = errors.New("device lacks a required capability")

// Requirements is what the device must support before any surface is allocated.
type Requirements struct {
	MinShaderModel   int
	MinRenderTargets int
	// ColorFormats lists acceptable G-buffer color formats; one must be supported.
	ColorFormats []gputypes.TextureFormat
	// DepthFormats lists acceptable depth formats; one must be supported.
	DepthFormats []gputypes.TextureFormat
	// Usage is required of the chosen color and depth formats.
	Usage gputypes.TextureUsage
}

// Probe checks a capability set against requirements. Every missing capability is reported,
// each with a hint naming it.
//
// Parameters:
//   - caps: the probed device capabilities
//   - req: the pipeline requirements
//
// Returns:
//   - error: nil if the device qualifies, otherwise an error marked ErrDeviceCapability
func Probe(caps backend.Capabilities, req Requirements) error {
	var missing []string
	if caps.MaxShaderModel < req.MinShaderModel {
		missing = append(missing, fmt.Sprintf("shader model %d or later (device has %d)", req.MinShaderModel, caps.MaxShaderModel))
	}
	if caps.MaxSimultaneousRenderTargets < req.MinRenderTargets {
		missing = append(missing, fmt.Sprintf("%d simultaneous render targets (device has %d)", req.MinRenderTargets, caps.MaxSimultaneousRenderTargets))
	}
	if !supportsAny(caps, req.ColorFormats, req.Usage) {
		missing = append(missing, fmt.Sprintf("a sampled render target color format from %s", formatList(req.ColorFormats)))
	}
	if !supportsAny(caps, req.DepthFormats, req.Usage) {
		missing = append(missing, fmt.Sprintf("a sampled render target depth format from %s", formatList(req.DepthFormats)))
	}
	if len(missing) == 0 {
		return nil
	}

	err := errors.Mark(errors.Newf("device capability check failed: %d requirement(s) unmet", len(missing)), ErrDeviceCapability)
	for _, m := range missing {
		err = errors.WithHintf(err, "requires %s", m)
	}
	return err
}

func supportsAny(caps backend.Capabilities, formats []gputypes.TextureFormat, usage gputypes.TextureUsage) bool {
	for _, f := range formats {
		if caps.Supports(f, usage) {
			return true
		}
	}
	return false
}

func formatList(formats []gputypes.TextureFormat) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = fmt.Sprint(f)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
