package webgpu

// WebGPUBackendBuilderOption is a function that configures the WebGPU backend.
type WebGPUBackendBuilderOption func(*webgpuBackend)

// WithFallbackAdapter forces the software adapter of the WebGPU implementation.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - WebGPUBackendBuilderOption: a function that applies the adapter option
func WithFallbackAdapter(force bool) WebGPUBackendBuilderOption {
	return func(b *webgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithVSync presents on vertical blank instead of immediately. Defaults to false.
func WithVSync(enabled bool) WebGPUBackendBuilderOption {
	return func(b *webgpuBackend) {
		b.SetVSync(enabled)
	}
}
