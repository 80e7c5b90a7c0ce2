package main

// plasmaFS computes a plasma pattern per texel of the output texture.
const plasmaFS = `
struct Params {
    time: f32,
    scale: f32,
}

@group(0) @binding(0) var<uniform> params: Params;

@fragment
fn main(@location(0) v_textureCoordinates: vec2f) -> @location(0) vec4f {
    let p = v_textureCoordinates * params.scale;
    let v = sin(p.x + params.time) + sin(p.y + params.time) + sin(p.x + p.y);
    let c = 0.5 + 0.5 * cos(vec3f(0.0, 2.094, 4.188) + v);
    return vec4f(c, 1.0);
}
`

// presentFS samples the computed texture onto the window surface.
const presentFS = `
@group(0) @binding(0) var inputTexture: texture_2d<f32>;
@group(0) @binding(1) var inputSampler: sampler;

@fragment
fn main(@location(0) v_textureCoordinates: vec2f) -> @location(0) vec4f {
    return textureSample(inputTexture, inputSampler, v_textureCoordinates);
}
`

// particleVS integrates one particle per invocation. The particle array is the vertex input;
// position and velocity are the captured varyings.
const particleVS = `
struct Particle {
    position: vec4f,
    velocity: vec4f,
}

struct Params {
    dt: f32,
    count: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(1) @binding(0) var<storage, read> particles: array<Particle>;
@group(1) @binding(1) var<storage, read_write> position: array<vec4f>;
@group(1) @binding(2) var<storage, read_write> velocity: array<vec4f>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3u) {
    if (id.x >= params.count) {
        return;
    }
    let p = particles[id.x];
    let v = p.velocity + vec4f(0.0, -9.8, 0.0, 0.0) * params.dt;
    position[id.x] = p.position + v * params.dt;
    velocity[id.x] = v;
}
`
