//go:build windows

package webgpu

// encodeWorkgroupSize is the number of (sample, level) units per workgroup.
const encodeWorkgroupSize = 64

// maxWorkgroupsPerDim is the WebGPU limit on a single dispatch dimension.
const maxWorkgroupsPerDim = 65535

// levelStride is the number of u32 fields per level in the levels buffer:
// offset, rows, vertices, resolution, dense.
const levelStride = 5

// gridEncodeShader interpolates one (sample, level) unit per invocation and
// writes C features into outputs laid out [L, B, C].
const gridEncodeShader = `
@group(0) @binding(0) var<storage, read> coords: array<f32>;
@group(0) @binding(1) var<storage, read> table: array<f32>;
@group(0) @binding(2) var<storage, read> levels: array<u32>;
@group(0) @binding(3) var<storage, read_write> outputs: array<f32>;

struct Params {
    batch: u32,
    num_levels: u32,
    dim: u32,
    channels: u32,
    align: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

var<private> PRIMES: array<u32, 7> = array<u32, 7>(
    1u, 2654435761u, 805459861u, 3674653429u, 2097192037u, 1434869437u, 2165219737u);

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>,
        @builtin(num_workgroups) nwg: vec3<u32>) {
    let unit = gid.x + gid.y * nwg.x * 64u;
    if (unit >= params.batch * params.num_levels) {
        return;
    }
    let b = unit / params.num_levels;
    let l = unit % params.num_levels;

    let offset = levels[l * 5u];
    let rows = levels[l * 5u + 1u];
    let vertices = levels[l * 5u + 2u];
    let res = f32(levels[l * 5u + 3u]);
    let dense = levels[l * 5u + 4u];

    var lower: array<u32, 7>;
    var frac: array<f32, 7>;
    let hi = f32(vertices - 1u);
    for (var d = 0u; d < params.dim; d++) {
        let x = coords[b * params.dim + d];
        var pos: f32;
        if (params.align != 0u) {
            pos = x * (res - 1.0);
        } else {
            pos = x * res - 0.5;
        }
        if (!(pos >= 0.0)) {
            pos = 0.0;
        }
        if (pos > hi) {
            pos = hi;
        }
        let lo = max(min(i32(floor(pos)), i32(vertices) - 2), 0);
        lower[d] = u32(lo);
        frac[d] = pos - f32(lo);
    }

    let base = (l * params.batch + b) * params.channels;
    for (var c = 0u; c < params.channels; c++) {
        outputs[base + c] = 0.0;
    }

    let corners = 1u << params.dim;
    for (var mask = 0u; mask < corners; mask++) {
        var w: f32 = 1.0;
        var idx = 0u;
        var stride = 1u;
        var h = 0u;
        for (var d = 0u; d < params.dim; d++) {
            var v = lower[d];
            if ((mask & (1u << d)) != 0u) {
                v = min(v + 1u, vertices - 1u);
                w = w * frac[d];
            } else {
                w = w * (1.0 - frac[d]);
            }
            idx = idx + v * stride;
            stride = stride * vertices;
            h = h ^ (v * PRIMES[d]);
        }
        var row = h % rows;
        if (dense != 0u) {
            row = idx;
        }
        row = row + offset;
        for (var c = 0u; c < params.channels; c++) {
            outputs[base + c] = outputs[base + c] + w * table[row * params.channels + c];
        }
    }
}
`
