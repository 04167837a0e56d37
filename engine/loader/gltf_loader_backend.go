package loader

import "io"

// gltfLoaderBackend is the glTF/GLB implementation of loaderBackend.
type gltfLoaderBackend struct {
	importer gltfImporter
}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend() loaderBackend {
	return &gltfLoaderBackend{
		importer: newGLTFImporter(),
	}
}

func (b *gltfLoaderBackend) Load(path string) (*importedMesh, error) {
	return b.importer.Import(path)
}

func (b *gltfLoaderBackend) LoadReader(r io.Reader, isGLB bool) (*importedMesh, error) {
	return b.importer.ImportReader(r, isGLB)
}

func (b *gltfLoaderBackend) Extensions() []string {
	return []string{".gltf", ".glb"}
}
