package loader

import "io"

// loaderBackend defines the generic interface for loading meshes from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports a mesh from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *importedMesh: the imported mesh data
	//   - error: error if loading fails
	Load(path string) (*importedMesh, error)

	// LoadReader imports a mesh from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data, false for text-based formats
	//
	// Returns:
	//   - *importedMesh: the imported mesh data
	//   - error: error if loading fails
	LoadReader(r io.Reader, isGLB bool) (*importedMesh, error)

	// Extensions lists the lower-case file extensions the backend reads.
	Extensions() []string
}
