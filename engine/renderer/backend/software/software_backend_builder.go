package software

import (
	"runtime"

	"github.com/gogpu/gputypes"
)

// SoftwareBackendBuilderOption is a function that configures the software backend.
type SoftwareBackendBuilderOption func(*softwareBackend)

// WithWorkers sets how many goroutines fullscreen passes are split across.
// Values below one fall back to runtime.NumCPU().
//
// Parameters:
//   - n: the number of row bands processed in parallel
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that applies the worker count
func WithWorkers(n int) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		b.workers = n
	}
}

// WithShaderModel overrides the reported maximum shader model.
//
// Parameters:
//   - model: the shader model to report
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that applies the shader model
func WithShaderModel(model int) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		b.caps.MaxShaderModel = model
	}
}

// WithMaxRenderTargets overrides the reported number of simultaneous render targets.
// The value is clamped to backend.MaxColorAttachments.
//
// Parameters:
//   - n: the number of color attachments a pass may write
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that applies the render target count
func WithMaxRenderTargets(n int) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		b.caps.MaxSimultaneousRenderTargets = n
	}
}

// WithoutFormat removes a texture format from the supported set.
//
// Parameters:
//   - format: the format to drop
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that removes the format
func WithoutFormat(format gputypes.TextureFormat) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		delete(b.caps.SupportedFormats, format)
	}
}

// WithFormatUsage restricts or extends the usages supported for a format.
//
// Parameters:
//   - format: the format to configure
//   - usage: the complete set of usages allowed for it
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that applies the usage set
func WithFormatUsage(format gputypes.TextureFormat, usage gputypes.TextureUsage) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		b.caps.SupportedFormats[format] = usage
	}
}

// WithOutputFormat sets the format of the default output. Defaults to RGBA8Unorm.
func WithOutputFormat(format gputypes.TextureFormat) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		b.outputFormat = format
	}
}
