package recognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/imaging"
	"github.com/kozaktomas/face-gallery/internal/storage"
)

// EnrollResult describes a successful enrollment.
type EnrollResult struct {
	Identity string                  `json:"name"`
	Image    string                  `json:"image"`
	Faces    int                     `json:"faces_detected"`
	Quality  facematch.QualityReport `json:"quality"`
	Rebuild  *gallery.RebuildReport  `json:"rebuild"`
}

// IdentityInfo is a stored identity with its gallery state.
type IdentityInfo struct {
	storage.Identity
	Representatives int  `json:"representatives"`
	InGallery       bool `json:"in_gallery"`
}

// CreateIdentity normalizes label and creates an empty identity. The canonical
// label is returned.
func (s *Service) CreateIdentity(label string) (string, error) {
	name, err := facematch.NormalizeLabel(label)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Create(name); err != nil {
		return "", err
	}
	return name, nil
}

// Enroll adds one image to an existing identity and rebuilds the gallery. The
// image is normalized, its largest face must pass the quality gate, and
// near-identical copies of already enrolled images are refused.
func (s *Service) Enroll(ctx context.Context, label string, imageData []byte) (*EnrollResult, error) {
	name, err := facematch.NormalizeLabel(label)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Exists(name) {
		return nil, fmt.Errorf("%w: %s", storage.ErrIdentityNotFound, name)
	}

	img, err := imaging.Normalize(imageData, s.opts.MaxImagePx)
	if err != nil {
		return nil, err
	}

	hash, err := imaging.DHash(img.Data)
	if err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(name, hash); err != nil {
		return nil, err
	}

	faces, err := s.detector.DetectFaces(ctx, img.Data)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	face, ok := embedding.LargestFace(faces)
	if !ok {
		return nil, ErrNoFace
	}

	quality, err := s.opts.Quality.Check(face)
	if err != nil {
		s.log.WithFields(logrus.Fields{"identity": name, "reason": quality.RejectReason}).Info("Enrollment image rejected")
		return nil, err
	}

	file, err := s.store.AddImage(name, img.Data, storage.ImageMeta{
		BBox:        face.BBox.Slice(),
		FaceWidth:   quality.Width,
		FaceHeight:  quality.Height,
		RollDegrees: quality.RollDegrees,
		RollStatus:  string(quality.RollStatus),
		DetScore:    face.Score,
		Width:       img.Width,
		Height:      img.Height,
		DHash:       imaging.FormatHash(hash),
		Model:       s.detector.Model(),
	})
	if err != nil {
		return nil, err
	}
	// The image is committed; the gallery must follow even if the caller went away.
	committed := context.WithoutCancel(ctx)
	s.remember(committed, database.CacheKey(img.Data, s.detector.Model()), face.Embedding)

	report, err := s.rebuildLocked(committed)
	if err != nil {
		return nil, fmt.Errorf("image stored but gallery rebuild failed: %w", err)
	}

	return &EnrollResult{
		Identity: name,
		Image:    file,
		Faces:    len(faces),
		Quality:  quality,
		Rebuild:  report,
	}, nil
}

func (s *Service) checkDuplicate(name string, hash uint64) error {
	existing, err := s.store.Images(name)
	if err != nil {
		return err
	}
	for _, img := range existing {
		if img.Meta == nil || img.Meta.DHash == "" {
			continue
		}
		other, err := imaging.ParseHash(img.Meta.DHash)
		if err != nil {
			continue
		}
		if imaging.HammingDistance(hash, other) <= imaging.DuplicateDistance {
			return fmt.Errorf("%w: matches %s", ErrDuplicateImage, img.Name)
		}
	}
	return nil
}

// DeleteIdentity removes an identity with all its images and rebuilds the gallery.
func (s *Service) DeleteIdentity(ctx context.Context, label string) (*gallery.RebuildReport, error) {
	name, err := facematch.NormalizeLabel(label)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(name); err != nil {
		return nil, err
	}
	report, err := s.rebuildLocked(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("identity deleted but gallery rebuild failed: %w", err)
	}
	return report, nil
}

// Identities lists stored identities with their representative counts.
func (s *Service) Identities() ([]IdentityInfo, error) {
	ids, err := s.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]IdentityInfo, 0, len(ids))
	for _, id := range ids {
		reps := s.gallery.Representatives(id.Name)
		out = append(out, IdentityInfo{Identity: id, Representatives: reps, InGallery: reps > 0})
	}
	return out, nil
}

// ImagePath resolves a stored image of an identity.
func (s *Service) ImagePath(label, file string) (string, error) {
	name, err := facematch.NormalizeLabel(label)
	if err != nil {
		return "", err
	}
	return s.store.ImagePath(name, file)
}

// IsClientError reports whether err was caused by the request rather than the system.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrNoFace, ErrDuplicateImage, imaging.ErrEmptyImage, imaging.ErrInvalidImage,
		facematch.ErrInvalidLabel, facematch.ErrFaceTooSmall, facematch.ErrRollTooLarge,
		storage.ErrIdentityExists, storage.ErrIdentityNotFound, storage.ErrImageNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
