package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// importedMesh is a glTF scene flattened into one indexed triangle list.
type importedMesh struct {
	Name     string
	Data     backend.MeshData
	Material gbuffer.Material
	// HasMaterial reports whether Material came from the document.
	HasMaterial bool
}

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct{}

// gltfImporter flattens a glTF/GLB document into a single static mesh.
// Node transforms are baked into the vertices; skins, animations and textures are ignored.
type gltfImporter interface {
	// Import loads a glTF/GLB file and flattens its default scene.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//
	// Returns:
	//   - *importedMesh: the merged mesh
	//   - error: error if import fails
	Import(path string) (*importedMesh, error)

	// ImportReader loads a glTF document from a reader and flattens its default scene.
	//
	// Parameters:
	//   - r: the reader providing glTF/GLB data
	//   - isGLB: true if the reader provides GLB binary data, false for glTF JSON
	//
	// Returns:
	//   - *importedMesh: the merged mesh
	//   - error: error if import fails
	ImportReader(r io.Reader, isGLB bool) (*importedMesh, error)
}

var _ gltfImporter = &gltfImporterImpl{}

func newGLTFImporter() gltfImporter {
	return &gltfImporterImpl{}
}

func (imp *gltfImporterImpl) Import(path string) (*importedMesh, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return imp.importFromParser(parser)
}

func (imp *gltfImporterImpl) ImportReader(r io.Reader, isGLB bool) (*importedMesh, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return nil, errors.Wrap(err, "parse reader")
	}
	return imp.importFromParser(parser)
}

// meshBuilder accumulates transformed primitives.
type meshBuilder struct {
	parser   gltfParser
	doc      *gltfDocument
	out      *importedMesh
	visiting map[int]bool
}

func (imp *gltfImporterImpl) importFromParser(parser gltfParser) (*importedMesh, error) {
	doc := parser.Document()
	b := &meshBuilder{
		parser:   parser,
		doc:      doc,
		out:      &importedMesh{Material: gbuffer.Material{Diffuse: mgl32.Vec3{0.8, 0.8, 0.8}, Specular: 0.5}},
		visiting: make(map[int]bool),
	}

	switch {
	case len(doc.Scenes) > 0:
		sceneIndex := 0
		if doc.Scene != nil {
			sceneIndex = *doc.Scene
		}
		if sceneIndex < 0 || sceneIndex >= len(doc.Scenes) {
			return nil, errors.Newf("default scene %d out of range", sceneIndex)
		}
		scene := doc.Scenes[sceneIndex]
		b.out.Name = scene.Name
		for _, n := range scene.Nodes {
			if err := b.addNode(n, mgl32.Ident4()); err != nil {
				return nil, err
			}
		}
	default:
		// No scene graph: every mesh at the origin.
		for i := range doc.Meshes {
			if err := b.addMesh(i, mgl32.Ident4()); err != nil {
				return nil, err
			}
		}
	}

	if len(b.out.Data.Indices) == 0 {
		return nil, errors.New("document contains no triangles")
	}
	return b.out, nil
}

func (b *meshBuilder) addNode(index int, parent mgl32.Mat4) error {
	if index < 0 || index >= len(b.doc.Nodes) {
		return errors.Newf("node %d out of range", index)
	}
	if b.visiting[index] {
		return errors.Newf("node %d is its own ancestor", index)
	}
	b.visiting[index] = true
	defer delete(b.visiting, index)

	node := &b.doc.Nodes[index]
	world := parent.Mul4(nodeTransform(node))
	if node.Mesh != nil {
		if err := b.addMesh(*node.Mesh, world); err != nil {
			return errors.Wrapf(err, "node %d", index)
		}
	}
	for _, child := range node.Children {
		if err := b.addNode(child, world); err != nil {
			return err
		}
	}
	return nil
}

// nodeTransform returns the local transform of a node. Matrix takes precedence over TRS.
func nodeTransform(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		// glTF and mgl32 are both column-major.
		return mgl32.Mat4(*n.Matrix)
	}

	m := mgl32.Ident4()
	if n.Translation != nil {
		t := n.Translation
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if n.Rotation != nil {
		r := n.Rotation
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if n.Scale != nil {
		s := n.Scale
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

func (b *meshBuilder) addMesh(index int, world mgl32.Mat4) error {
	if index < 0 || index >= len(b.doc.Meshes) {
		return errors.Newf("mesh %d out of range", index)
	}
	mesh := &b.doc.Meshes[index]
	if b.out.Name == "" {
		b.out.Name = mesh.Name
	}

	normalMatrix := world.Mat3().Inv().Transpose()
	for pi := range mesh.Primitives {
		if err := b.addPrimitive(&mesh.Primitives[pi], world, normalMatrix); err != nil {
			return errors.Wrapf(err, "mesh %d primitive %d", index, pi)
		}
	}
	return nil
}

func (b *meshBuilder) addPrimitive(prim *gltfPrimitive, world mgl32.Mat4, normalMatrix mgl32.Mat3) error {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return errors.Newf("unsupported primitive mode %d", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("primitive has no POSITION attribute")
	}
	positions, err := b.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return errors.Wrap(err, "read positions")
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = b.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return errors.Wrap(err, "read indices")
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return errors.Newf("%d indices do not form whole triangles", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return errors.Newf("index %d out of range for %d vertices", idx, len(positions))
		}
	}

	local := make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		local[i] = mgl32.Vec3(p)
	}

	var normals []mgl32.Vec3
	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		raw, err := b.parser.ReadVec3Accessor(normalAccessor)
		if err != nil {
			return errors.Wrap(err, "read normals")
		}
		if len(raw) != len(positions) {
			return errors.Newf("%d normals for %d positions", len(raw), len(positions))
		}
		normals = make([]mgl32.Vec3, len(raw))
		for i, n := range raw {
			normals[i] = mgl32.Vec3(n)
		}
	} else {
		normals = generateNormals(local, indices)
	}

	base := uint32(len(b.out.Data.Positions))
	for i := range local {
		b.out.Data.Positions = append(b.out.Data.Positions, mgl32.TransformCoordinate(local[i], world))
		b.out.Data.Normals = append(b.out.Data.Normals, safeNormalize(normalMatrix.Mul3x1(normals[i])))
	}
	for _, idx := range indices {
		b.out.Data.Indices = append(b.out.Data.Indices, base+idx)
	}

	if !b.out.HasMaterial && prim.Material != nil {
		b.applyMaterial(*prim.Material)
	}
	return nil
}

// applyMaterial takes the diffuse color and metallic factor of a glTF material.
func (b *meshBuilder) applyMaterial(index int) {
	if index < 0 || index >= len(b.doc.Materials) {
		return
	}
	b.out.HasMaterial = true
	pbr := b.doc.Materials[index].PbrMetallicRoughness
	if pbr == nil {
		return
	}
	if c := pbr.BaseColorFactor; c != nil {
		b.out.Material.Diffuse = mgl32.Vec3{c[0], c[1], c[2]}
	}
	if pbr.MetallicFactor != nil {
		b.out.Material.Specular = mgl32.Clamp(*pbr.MetallicFactor, 0, 1)
	}
}

// generateNormals computes smooth vertex normals by area-weighted averaging of face normals.
// Vertices touched only by degenerate triangles default to +Y.
func generateNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	accum := make([]mgl32.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := positions[i0], positions[i1], positions[i2]

		// Length proportional to triangle area
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}
	for i := range accum {
		accum[i] = safeNormalize(accum[i])
	}
	return accum
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < 1e-6 {
		return mgl32.Vec3{0, 1, 0}
	}
	return v.Normalize()
}
