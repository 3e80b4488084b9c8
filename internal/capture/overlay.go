package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/posture/internal/detector"
)

var (
	colorGood    = color.RGBA{R: 60, G: 200, B: 80, A: 255}
	colorBad     = color.RGBA{R: 230, G: 50, B: 50, A: 255}
	colorUnknown = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	colorJoint   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Overlay describes what to draw on a frame.
type Overlay struct {
	Pose *detector.Pose
	// Verdict is "good", "bad" or empty when unknown.
	Verdict string
	Label   string
}

// Draw renders the skeleton and label onto img in place.
func (o Overlay) Draw(img *gocv.Mat) {
	c := verdictColor(o.Verdict)

	if o.Pose != nil && o.Pose.HasImage {
		w, h := float64(img.Cols()), float64(img.Rows())
		pt := func(i int) image.Point {
			lm := o.Pose.Landmarks[i]
			return image.Pt(int(lm.X*w), int(lm.Y*h))
		}

		for _, conn := range detector.PoseConnections {
			gocv.Line(img, pt(conn[0]), pt(conn[1]), c, 2)
		}
		for _, conn := range detector.PoseConnections {
			gocv.Circle(img, pt(conn[0]), 3, colorJoint, -1)
			gocv.Circle(img, pt(conn[1]), 3, colorJoint, -1)
		}
	}

	label := o.Label
	if label == "" {
		label = "no pose"
		if o.Verdict != "" {
			label = o.Verdict
		}
	}
	gocv.PutText(img, label, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, c, 2)
}

// Label formats a verdict line such as "bad: slouch (torso 12.3)".
func Label(verdict, category string, torso float64) string {
	return fmt.Sprintf("%s: %s (torso %.1f)", verdict, category, torso)
}

func verdictColor(verdict string) color.RGBA {
	switch verdict {
	case "good":
		return colorGood
	case "bad":
		return colorBad
	default:
		return colorUnknown
	}
}
