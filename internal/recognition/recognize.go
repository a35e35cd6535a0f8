package recognition

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/imaging"
	"github.com/kozaktomas/face-gallery/internal/matcher"
)

// FaceResult is the match of one detected face.
type FaceResult struct {
	Name         string           `json:"name"`
	Distance     float64          `json:"distance"`
	Confidence   float64          `json:"confidence"`
	Decision     matcher.Decision `json:"decision"`
	BBox         []float64        `json:"bbox"`          // [x1, y1, x2, y2] in pixels of the normalized image
	RelativeBBox []float64        `json:"bbox_relative"` // same box in 0-1 coordinates
	DetScore     float64          `json:"det_score"`
}

// Recognition is the answer to a recognition request.
type Recognition struct {
	Faces       []FaceResult `json:"faces"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	GallerySize int          `json:"gallery_size"`
	Timings     Timings      `json:"timings"`
}

// Recognize detects every face in imageData and matches each one independently.
// An image without faces yields an empty result, not an error.
func (s *Service) Recognize(ctx context.Context, imageData []byte) (*Recognition, error) {
	var timings Timings

	start := time.Now()
	img, err := imaging.Normalize(imageData, s.opts.MaxImagePx)
	if err != nil {
		return nil, err
	}
	timings.Decode = time.Since(start)

	start = time.Now()
	faces, err := s.detector.DetectFaces(ctx, img.Data)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	faces = facematch.DedupeFaces(faces, s.opts.DedupeIoU)
	timings.Detection = time.Since(start)

	start = time.Now()
	results := make([]FaceResult, 0, len(faces))
	for _, face := range faces {
		results = append(results, s.matchFace(face, img.Width, img.Height))
	}
	timings.Matching = time.Since(start)

	s.log.WithFields(logrus.Fields{
		"faces":     len(results),
		"detection": timings.Detection.Round(time.Millisecond),
		"matching":  timings.Matching.Round(time.Microsecond),
	}).Debug("Recognition finished")

	return &Recognition{
		Faces:       results,
		Width:       img.Width,
		Height:      img.Height,
		GallerySize: s.gallery.Size(),
		Timings:     timings,
	}, nil
}

func (s *Service) matchFace(face embedding.Face, width, height int) FaceResult {
	res := s.matcher.Match(face.Embedding)
	bbox := face.BBox.Slice()
	return FaceResult{
		Name:         res.Identity,
		Distance:     res.Distance,
		Confidence:   res.Confidence,
		Decision:     res.Decision,
		BBox:         bbox,
		RelativeBBox: facematch.ConvertPixelBBoxToRelative(bbox, width, height),
		DetScore:     face.Score,
	}
}

// MatchEmbedding matches a precomputed query embedding.
func (s *Service) MatchEmbedding(query []float32) matcher.Result {
	return s.matcher.Match(query)
}
