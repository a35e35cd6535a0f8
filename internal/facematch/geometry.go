package facematch

import (
	"math"

	"github.com/kozaktomas/face-gallery/internal/embedding"
)

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	// Calculate union.
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// EyeCenters returns the left and right eye centers for 5-point (InsightFace)
// or 68-point (dlib) landmark sets. ok is false for any other layout.
func EyeCenters(landmarks []embedding.Point) (left, right embedding.Point, ok bool) {
	switch {
	case len(landmarks) == 5:
		return landmarks[0], landmarks[1], true
	case len(landmarks) >= 68:
		return centroid(landmarks[36:42]), centroid(landmarks[42:48]), true
	default:
		return embedding.Point{}, embedding.Point{}, false
	}
}

func centroid(points []embedding.Point) embedding.Point {
	var c embedding.Point
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(points))
	return embedding.Point{X: c.X / n, Y: c.Y / n}
}

// RollDegrees is the in-plane head rotation given by the line between the eyes,
// folded into (-90, 90].
func RollDegrees(left, right embedding.Point) float64 {
	deg := math.Atan2(right.Y-left.Y, right.X-left.X) * 180 / math.Pi
	if deg > 90 {
		deg -= 180
	} else if deg <= -90 {
		deg += 180
	}
	return deg
}

// DedupeFaces drops detections overlapping an earlier, higher-scored one by at
// least iouThreshold. Input order is otherwise preserved.
func DedupeFaces(faces []embedding.Face, iouThreshold float64) []embedding.Face {
	out := make([]embedding.Face, 0, len(faces))
	for _, f := range faces {
		dup := false
		for i, kept := range out {
			if ComputeIoU(f.BBox.Slice(), kept.BBox.Slice()) >= iouThreshold {
				if f.Score > kept.Score {
					out[i] = f
				}
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, f)
		}
	}
	return out
}
