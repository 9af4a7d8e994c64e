package dissect

import "dpinet.dev/dpinet/internal/model"

// maxLayerDepth bounds how many layers Walk will decode for a single
// frame. It guards against a dissector chain that keeps producing a
// Selector and residual bytes without making progress — the same
// defensive bound the layer-chain traversal in the reference DPI engine
// used, distinct from DNS's own pointer-hop guard.
const maxLayerDepth = 16

// Walk decodes frame.Data against the registry's root link-type
// binding, following each dissector's Selector to the next one until a
// terminal layer, an unresolvable selector, or the depth limit is
// reached.
func Walk(r *Registry, frame model.CapturedFrame) model.PacketAnalysis {
	layers := make([]model.LayerRecord, 0, 4)

	d := r.Lookup(model.ProtoLink, uint32(frame.LinkType))
	data := frame.Data
	base := 0

	for depth := 0; d != nil && depth < maxLayerDepth; depth++ {
		res := d.Dissect(data, base)
		layers = append(layers, res.Layer)

		if res.Residual == nil {
			break
		}
		next, _ := r.Resolve(res.Selector)
		if next == nil {
			last := res.Layer
			if last.EndOffset < len(frame.Data) {
				layers = append(layers, model.LayerRecord{
					Proto:       model.ProtoUnknown,
					StartOffset: last.EndOffset,
					EndOffset:   len(frame.Data),
				})
			}
			break
		}
		base = res.Layer.EndOffset
		data = res.Residual
		d = next
	}

	residual := 0
	if n := len(layers); n > 0 {
		last := layers[n-1]
		residual = len(frame.Data) - last.EndOffset
		if residual < 0 {
			residual = 0
		}
	}

	return model.PacketAnalysis{
		FrameID:        frame.ID,
		TimestampNanos: frame.Timestamp.UnixNano(),
		Layers:         layers,
		ResidualBytes:  residual,
	}
}
