package broadcast

import (
	"testing"

	"dpinet.dev/dpinet/internal/model"
)

func analysisWithLayers(layers ...model.LayerRecord) model.PacketAnalysis {
	return model.PacketAnalysis{Layers: layers}
}

func TestFilter_NilMatchesEverything(t *testing.T) {
	var f *filter
	if !f.matches(analysisWithLayers()) {
		t.Fatal("nil filter should match everything")
	}
}

func TestFilter_ProtocolRestriction(t *testing.T) {
	f := newFilter(subscribePayload{Protocols: []string{"DNS"}})

	matching := analysisWithLayers(
		model.LayerRecord{Proto: model.ProtoEthernet},
		model.LayerRecord{Proto: model.ProtoDNS},
	)
	if !f.matches(matching) {
		t.Error("expected a DNS-carrying analysis to match a DNS filter")
	}

	nonMatching := analysisWithLayers(
		model.LayerRecord{Proto: model.ProtoEthernet},
		model.LayerRecord{Proto: model.ProtoARP},
	)
	if f.matches(nonMatching) {
		t.Error("expected an ARP-only analysis to be rejected by a DNS filter")
	}
}

func TestFilter_PortRestriction(t *testing.T) {
	f := newFilter(subscribePayload{Ports: []int{443}})

	matching := analysisWithLayers(model.LayerRecord{
		Proto:  model.ProtoTCP,
		Fields: map[string]any{"dst_port": uint16(443), "src_port": uint16(51000)},
	})
	if !f.matches(matching) {
		t.Error("expected dst_port=443 to match a {443} port filter")
	}

	nonMatching := analysisWithLayers(model.LayerRecord{
		Proto:  model.ProtoTCP,
		Fields: map[string]any{"dst_port": uint16(8080), "src_port": uint16(51000)},
	})
	if f.matches(nonMatching) {
		t.Error("expected dst_port=8080 to be rejected by a {443} port filter")
	}
}
