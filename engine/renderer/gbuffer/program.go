package gbuffer

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/go-gl/mathgl/mgl32"
)

// ProgramKey identifies the G-buffer geometry program.
const ProgramKey = "gbuffer"

// programWGSL writes both G-buffer color surfaces in one pass.
// Vertex input is interleaved position (location 0) and normal (location 1).
const programWGSL = `
struct Uniforms {
    model_view: mat4x4<f32>,
    normal: mat4x4<f32>,
    proj: mat4x4<f32>,
    depth: vec4<f32>,
    material: vec4<f32>,
};

@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexIn {
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
};

struct VertexOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) view_pos: vec3<f32>,
    @location(1) view_normal: vec3<f32>,
};

@vertex
fn vs_main(in: VertexIn) -> VertexOut {
    var out: VertexOut;
    let view_pos = u.model_view * vec4<f32>(in.position, 1.0);
    out.clip = u.proj * view_pos;
    // GL-style projection, remap z from [-w, w] to [0, w].
    out.clip.z = (out.clip.z + out.clip.w) * 0.5;
    out.view_pos = view_pos.xyz;
    out.view_normal = (u.normal * vec4<f32>(in.normal, 0.0)).xyz;
    return out;
}

struct GBufferOut {
    @location(0) color: vec4<f32>,
    @location(1) normal_depth: vec4<f32>,
};

@fragment
fn fs_main(in: VertexOut) -> GBufferOut {
    var out: GBufferOut;
    out.color = u.material;
    let n = normalize(in.view_normal);
    out.normal_depth = vec4<f32>(n * 0.5 + vec3<f32>(0.5), clamp(-in.view_pos.z * u.depth.z, 0.0, 1.0));
    return out;
}
`

// Program returns the G-buffer geometry program.
func Program() backend.GeometryProgram {
	return backend.GeometryProgram{
		Key:   ProgramKey,
		WGSL:  programWGSL,
		Shade: shade,
	}
}

func shade(in backend.GeometryFragment, out []mgl32.Vec4) {
	u := in.Uniforms
	if len(out) > 0 {
		out[0] = u.Material
	}
	if len(out) > 1 {
		depth := common.DepthParams{Near: u.Depth[0], Far: u.Depth[1], InvFar: u.Depth[2]}
		out[1] = common.EncodeNormal(in.ViewNormal).Vec4(depth.Encode(in.ViewPosition.Z()))
	}
}
