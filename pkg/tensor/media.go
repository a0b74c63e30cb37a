package tensor

// MediaFormatLen is the length of the ASCII format tag that starts every
// image, audio and video element.
const MediaFormatLen = 3

// Common media format tags.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpg"
	FormatWebP = "wbp"
	FormatWAV  = "wav"
	FormatMP3  = "mp3"
	FormatFLAC = "flc"
	FormatMP4  = "mp4"
	FormatWebM = "wbm"
)

// Media is one element of an image, audio or video tensor.
type Media struct {
	// Format is the 3-byte ASCII format tag.
	Format string

	// Data is the raw media payload.
	Data []byte
}

// Validate checks that the format tag is exactly three ASCII bytes.
func (m Media) Validate() error {
	if len(m.Format) != MediaFormatLen {
		return ErrInvalidMedia
	}
	for i := 0; i < len(m.Format); i++ {
		if m.Format[i] >= 0x80 {
			return ErrInvalidMedia
		}
	}
	return nil
}

// encodedLen returns the element length on the wire.
func (m Media) encodedLen() int {
	return MediaFormatLen + len(m.Data)
}

// parseMedia splits a raw element into format tag and payload.
// The payload aliases raw.
func parseMedia(raw []byte) (Media, error) {
	if len(raw) < MediaFormatLen {
		return Media{}, ErrInvalidMedia
	}
	m := Media{Format: string(raw[:MediaFormatLen]), Data: raw[MediaFormatLen:]}
	if err := m.Validate(); err != nil {
		return Media{}, err
	}
	return m, nil
}
