package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-gallery/internal/embedding"
)

// QualityGate rejects enrollment faces that are too small or too tilted.
type QualityGate struct {
	MinFacePx      float64
	MaxRollDegrees float64
}

// DefaultQualityGate returns the stock enrollment limits.
func DefaultQualityGate() QualityGate {
	return QualityGate{MinFacePx: 80, MaxRollDegrees: 15}
}

// Check measures face and returns ErrFaceTooSmall or ErrRollTooLarge when it
// fails the gate. The report is filled in either way.
func (g QualityGate) Check(face embedding.Face) (QualityReport, error) {
	r := QualityReport{
		Width:      face.BBox.Width(),
		Height:     face.BBox.Height(),
		MinFacePx:  g.MinFacePx,
		MaxRollDeg: g.MaxRollDegrees,
		RollStatus: RollSkipped,
	}

	if r.Width < g.MinFacePx || r.Height < g.MinFacePx {
		r.RejectReason = fmt.Sprintf("face is %.0fx%.0f px, minimum is %.0f px", r.Width, r.Height, g.MinFacePx)
		return r, fmt.Errorf("%w: %s", ErrFaceTooSmall, r.RejectReason)
	}

	left, right, ok := EyeCenters(face.Landmarks)
	if !ok {
		return r, nil
	}
	r.RollStatus = RollChecked
	r.RollDegrees = RollDegrees(left, right)

	if g.MaxRollDegrees > 0 && math.Abs(r.RollDegrees) > g.MaxRollDegrees {
		r.RejectReason = fmt.Sprintf("head roll is %.1f°, maximum is %.0f°", r.RollDegrees, g.MaxRollDegrees)
		return r, fmt.Errorf("%w: %s", ErrRollTooLarge, r.RejectReason)
	}
	return r, nil
}
