package protocol

// Allocation limits to reject malicious or corrupt length prefixes before
// any slice is taken.
const (
	// MaxSegments is the maximum number of data segments in one frame.
	// The counted layout stores the count in a single byte.
	MaxSegments = 255

	// DefaultMaxSegmentSize is the default ceiling for a single declared
	// length (control segment or data segment): 1 GiB.
	DefaultMaxSegmentSize = 1 << 30

	// HardMaxSegmentSize is the absolute ceiling: 4 GiB. Even if configured
	// higher, declared lengths are capped at this limit.
	HardMaxSegmentSize = 4 << 30

	// MaxTagLen is the maximum length of an event resource tag.
	MaxTagLen = 255
)

// Limits configures the decoding limits of a Decoder.
type Limits struct {
	// MaxSegmentSize is the largest accepted declared length.
	// Zero means DefaultMaxSegmentSize.
	MaxSegmentSize uint64
}

// DefaultLimits returns the default decoding limits.
func DefaultLimits() Limits {
	return Limits{MaxSegmentSize: DefaultMaxSegmentSize}
}

// maxSegment returns the effective segment ceiling.
func (l Limits) maxSegment() uint64 {
	switch {
	case l.MaxSegmentSize == 0:
		return DefaultMaxSegmentSize
	case l.MaxSegmentSize > HardMaxSegmentSize:
		return HardMaxSegmentSize
	default:
		return l.MaxSegmentSize
	}
}
