package pi7c9xg404

// Each port of the switch presents a PCI-to-PCI bridge, so the first 64
// bytes of every bank follow the PCI type-1 configuration header.
var type1Header = map[RegisterOffset]string{
	0x00: "Device ID / Vendor ID",
	0x04: "Status / Command",
	0x08: "Class Code / Revision ID",
	0x0C: "BIST / Header Type / Latency Timer / Cache Line Size",
	0x10: "Base Address 0",
	0x14: "Base Address 1",
	0x18: "Secondary Latency / Subordinate / Secondary / Primary Bus",
	0x1C: "Secondary Status / I/O Limit / I/O Base",
	0x20: "Memory Limit / Memory Base",
	0x24: "Prefetchable Limit / Prefetchable Base",
	0x28: "Prefetchable Base Upper 32 Bits",
	0x2C: "Prefetchable Limit Upper 32 Bits",
	0x30: "I/O Limit Upper 16 / I/O Base Upper 16",
	0x34: "Capabilities Pointer",
	0x38: "Expansion ROM Base Address",
	0x3C: "Bridge Control / Interrupt Pin / Interrupt Line",
}

// RegisterName returns the standard name of the header register at offset,
// or "" past the header or for unaligned offsets.
func RegisterName(offset RegisterOffset) string {
	return type1Header[offset]
}
