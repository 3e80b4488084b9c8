// Package fixtures synthesizes camera frames for tests.
package fixtures

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/posture/internal/capture"
)

var figure = color.RGBA{R: 220, G: 220, B: 220, A: 255}

// Frame returns a BGR frame with a seated stick figure drawn on black.
// The caller closes it.
func Frame(width, height int) *gocv.Mat {
	frame := capture.BlankFrame(width, height)

	cx := width / 2
	head := image.Pt(cx, height/4)
	neck := image.Pt(cx, height*3/8)
	hip := image.Pt(cx, height*5/8)

	gocv.Circle(frame, head, height/12, figure, -1)
	gocv.Line(frame, neck, hip, figure, 3)
	gocv.Line(frame, image.Pt(cx-width/8, neck.Y), image.Pt(cx+width/8, neck.Y), figure, 3)
	gocv.Line(frame, hip, image.Pt(cx+width/6, hip.Y), figure, 3)

	return frame
}

// Sequence returns n copies of Frame. Release them with CloseAll.
func Sequence(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		frames[i] = Frame(width, height)
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// JPEG returns Frame encoded as JPEG.
func JPEG(width, height int) ([]byte, error) {
	frame := Frame(width, height)
	defer frame.Close()
	return capture.EncodeJPEG(frame, capture.DefaultJPEGQuality)
}
