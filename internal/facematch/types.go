// Package facematch holds the face-level rules shared by enrollment, recognition and
// the HTTP handlers: identity label normalization, enrollment quality checks and bbox
// geometry.
package facematch

import "errors"

var (
	// ErrInvalidLabel is returned for labels that cannot name an identity.
	ErrInvalidLabel = errors.New("invalid identity label")
	// ErrFaceTooSmall is returned when the face bbox is below the minimum size.
	ErrFaceTooSmall = errors.New("face too small")
	// ErrRollTooLarge is returned when the head is tilted beyond the allowed roll.
	ErrRollTooLarge = errors.New("face roll too large")
)

// RollStatus describes whether the roll check ran.
type RollStatus string

const (
	RollChecked RollStatus = "checked"
	RollSkipped RollStatus = "skipped_no_landmarks" // detector returned no usable eye landmarks
)

// QualityReport is the measured quality of one face.
type QualityReport struct {
	Width        float64    `json:"width"`
	Height       float64    `json:"height"`
	RollDegrees  float64    `json:"roll_degrees"`
	RollStatus   RollStatus `json:"roll_status"`
	MinFacePx    float64    `json:"min_face_px"`
	MaxRollDeg   float64    `json:"max_roll_degrees"`
	RejectReason string     `json:"reject_reason,omitempty"`
}
