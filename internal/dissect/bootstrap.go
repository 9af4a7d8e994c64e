package dissect

import "dpinet.dev/dpinet/internal/model"

// EtherType and IP protocol number constants used only by Bootstrap to
// seed the canonical dissector bindings.
const (
	etherTypeARP  = 0x0806
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD

	ipProtoICMPv4 = 1
	ipProtoTCP    = 6
	ipProtoUDP    = 17
	ipProtoICMPv6 = 58

	portDNS      = 53
	portDHCPv4Sv = 67
	portDHCPv4Cl = 68
	portDHCPv6Cl = 546
	portDHCPv6Sv = 547
	portHTTP     = 80
)

// Bootstrap builds and freezes the registry used by every dissection
// worker: the root link-type dispatch plus every binding between a
// parent protocol and the dissector of the layer it carries.
func Bootstrap() *Registry {
	r := NewRegistry()

	r.Register(model.ProtoLink, uint32(model.LinkTypeEthernet), EthernetDissector{})

	r.Register(model.ProtoEthernet, etherTypeARP, ARPDissector{})
	r.Register(model.ProtoEthernet, etherTypeIPv4, IPv4Dissector{})
	r.Register(model.ProtoEthernet, etherTypeIPv6, IPv6Dissector{})

	r.Register(model.ProtoIPv4, ipProtoICMPv4, ICMPv4Dissector{})
	r.Register(model.ProtoIPv4, ipProtoICMPv6, ICMPv6Dissector{})
	r.Register(model.ProtoIPv4, ipProtoTCP, TCPDissector{})
	r.Register(model.ProtoIPv4, ipProtoUDP, UDPDissector{})

	r.Register(model.ProtoIPv6, ipProtoICMPv4, ICMPv4Dissector{})
	r.Register(model.ProtoIPv6, ipProtoICMPv6, ICMPv6Dissector{})
	r.Register(model.ProtoIPv6, ipProtoTCP, TCPDissector{})
	r.Register(model.ProtoIPv6, ipProtoUDP, UDPDissector{})

	r.Register(model.ProtoUDP, portDNS, DNSDissector{})
	r.Register(model.ProtoUDP, portDHCPv4Sv, DHCPv4Dissector{})
	r.Register(model.ProtoUDP, portDHCPv4Cl, DHCPv4Dissector{})
	r.Register(model.ProtoUDP, portDHCPv6Cl, DHCPv6Dissector{})
	r.Register(model.ProtoUDP, portDHCPv6Sv, DHCPv6Dissector{})

	r.Register(model.ProtoTCP, portHTTP, HTTPDissector{})

	r.Freeze()
	return r
}
