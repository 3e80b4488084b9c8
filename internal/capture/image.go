package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when uploaded bytes do not decode to an image.
var ErrInvalidImage = errors.New("invalid image")

// DefaultJPEGQuality is used when encoding frames for streaming.
const DefaultJPEGQuality = 80

// DecodeImage decodes encoded image bytes (JPEG, PNG, ...) into a BGR Mat.
// The caller closes the returned Mat.
func DecodeImage(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrInvalidImage
	}
	return &mat, nil
}

// EncodeJPEG encodes a frame as JPEG at the given quality (1-100).
func EncodeJPEG(frame *gocv.Mat, quality int) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that Close frees.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// BlankFrame returns a black BGR frame of the given size.
func BlankFrame(width, height int) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
	return &mat
}
