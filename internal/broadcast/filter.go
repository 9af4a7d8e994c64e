package broadcast

import "dpinet.dev/dpinet/internal/model"

// subscribePayload is the body of a Subscribe frame: a subscriber may
// narrow the Packet frames it receives to a set of protocols seen in any
// layer and/or a set of ports seen in a TCP/UDP layer. An empty set for
// either means "no restriction on that dimension".
type subscribePayload struct {
	Protocols []string `json:"protocols,omitempty"`
	Ports     []int    `json:"ports,omitempty"`
}

// filter is the compiled form of a subscribePayload, cheap to test a
// PacketAnalysis against on every fan-out.
type filter struct {
	protocols map[model.ProtoTag]bool
	ports     map[int]bool
}

func newFilter(p subscribePayload) *filter {
	f := &filter{}
	if len(p.Protocols) > 0 {
		f.protocols = make(map[model.ProtoTag]bool, len(p.Protocols))
		for _, proto := range p.Protocols {
			f.protocols[model.ProtoTag(proto)] = true
		}
	}
	if len(p.Ports) > 0 {
		f.ports = make(map[int]bool, len(p.Ports))
		for _, port := range p.Ports {
			f.ports[port] = true
		}
	}
	return f
}

// matches reports whether analysis satisfies every dimension this
// filter restricts. A nil filter, or one with both dimensions empty,
// matches everything.
func (f *filter) matches(analysis model.PacketAnalysis) bool {
	if f == nil {
		return true
	}
	if f.protocols != nil && !f.hasProtocol(analysis) {
		return false
	}
	if f.ports != nil && !f.hasPort(analysis) {
		return false
	}
	return true
}

func (f *filter) hasProtocol(analysis model.PacketAnalysis) bool {
	for _, layer := range analysis.Layers {
		if f.protocols[layer.Proto] {
			return true
		}
	}
	return false
}

func (f *filter) hasPort(analysis model.PacketAnalysis) bool {
	for _, layer := range analysis.Layers {
		if layer.Proto != model.ProtoTCP && layer.Proto != model.ProtoUDP {
			continue
		}
		if p, ok := intField(layer.Fields, "src_port"); ok && f.ports[p] {
			return true
		}
		if p, ok := intField(layer.Fields, "dst_port"); ok && f.ports[p] {
			return true
		}
	}
	return false
}

func intField(fields map[string]any, key string) (int, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case uint16:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}
