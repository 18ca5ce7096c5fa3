package ai

import (
	"fmt"

	"gocv.io/x/gocv"

	"pettracker/internal/model"
)

// DefaultJPEGQuality is used for classifier uploads.
const DefaultJPEGQuality = 90

// frameMat wraps the frame bytes in a Mat. The caller must Close it.
func frameMat(frame model.Frame) (gocv.Mat, error) {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) != model.FrameSize(frame.Width, frame.Height) {
		return gocv.Mat{}, fmt.Errorf("frame %dx%d has %d bytes", frame.Width, frame.Height, len(frame.Data))
	}
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to wrap frame: %w", err)
	}
	return mat, nil
}

// EncodeJPEG encodes a bgr24 frame as JPEG at the given quality (0-100).
func EncodeJPEG(frame model.Frame, quality int) ([]byte, error) {
	mat, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
