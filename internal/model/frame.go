package model

// Channels is the number of interleaved bytes per pixel (bgr24).
const Channels = 3

// Frame is one decoded BGR24 image. Data is interleaved row-major and
// len(Data) == Width*Height*Channels. Seq is the 1-based write sequence of
// the source that produced it.
type Frame struct {
	Width  int
	Height int
	Seq    uint64
	Data   []byte
}

// FrameSize returns the byte length of a width x height bgr24 frame.
func FrameSize(width, height int) int {
	return width * height * Channels
}

// Clone returns a frame with its own copy of Data.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.Data = data
	return f
}
