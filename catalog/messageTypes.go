package catalog

// MessageType describes the payload kind of a chat message.
type MessageType string

const (
	Text  MessageType = "text"
	Image MessageType = "image"
	Video MessageType = "video"
	Audio MessageType = "audio"
	File  MessageType = "file"
)

// HasAttachment reports whether messages of this type carry an attachment
// that moves over the chunked transfer path.
func (mt MessageType) HasAttachment() bool {
	switch mt {
	case Image, Video, Audio, File:
		return true
	default:
		return false
	}
}

// Ext returns the default file extension used when writing a reassembled
// payload of this type to the media cache.
func (mt MessageType) Ext() string {
	switch mt {
	case Image:
		return "jpg"
	case Video:
		return "mp4"
	case Audio:
		return "m4a"
	default:
		return "bin"
	}
}
