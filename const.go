package jpt

const (
	// Magic identifies a JPT container.
	Magic = "JPT"
	// Version is the newest container version this package reads and the one it writes.
	Version uint8 = 1
)

const (
	magicSize  = len(Magic)
	lengthSize = 4
	headerSize = magicSize + 1 + lengthSize // magic, version, JPEG length
)

// DefaultQuality is the JPEG quality used when none is requested.
const DefaultQuality = 95

const fileMode = 0o644
