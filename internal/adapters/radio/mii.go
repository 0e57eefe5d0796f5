package radio

// MII basic-mode status register bits of interest: 0x0004 is link status,
// 0x0010 (plus 0x0002, jabber on old PHYs) flags conditions that mask it.
const miiLinkMask = 0x0016

// linkBeatFromStatus decides "link up" from the 16-bit MII status word.
func linkBeatFromStatus(status uint16) bool {
	return status&miiLinkMask == 0x0004
}
