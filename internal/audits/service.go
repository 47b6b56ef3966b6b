package audits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"audit-backend/internal/shared/storage/object"
	"audit-backend/internal/shared/telemetry"
	"audit-backend/internal/shared/util"
)

// ErrInvalidInput marks caller mistakes surfaced as 400s.
var ErrInvalidInput = errors.New("invalid input")

const maxImages = 20

// PipelineLauncher starts the audit pipeline for one record. Wired to
// pipeline.Runner.Run at bootstrap; a test double elsewhere.
type PipelineLauncher func(ctx context.Context, auditID string)

// Service contains business logic for audits.
type Service struct {
	Repo   Repo
	Store  object.ObjectStore
	Launch PipelineLauncher
}

// CreateInput carries the multipart upload contents for a new audit.
type CreateInput struct {
	AgentName       string
	InteractionType string
	Audio           *multipart.FileHeader
	Images          []*multipart.FileHeader
}

// Create validates the upload, stores the media, persists the record, and
// launches the pipeline asynchronously.
func (s *Service) Create(ctx context.Context, in CreateInput) (Audit, error) {
	if strings.TrimSpace(in.InteractionType) == "" {
		return Audit{}, fmt.Errorf("%w: interactionType is required", ErrInvalidInput)
	}
	if in.Audio == nil {
		return Audit{}, fmt.Errorf("%w: audio file is required", ErrInvalidInput)
	}
	if len(in.Images) == 0 {
		return Audit{}, fmt.Errorf("%w: at least one screenshot is required", ErrInvalidInput)
	}
	if len(in.Images) > maxImages {
		return Audit{}, fmt.Errorf("%w: at most %d screenshots", ErrInvalidInput, maxImages)
	}

	auditID := uuid.NewString()
	namespace := "media/" + auditID

	audioKey, err := s.storeUpload(ctx, namespace, in.Audio)
	if err != nil {
		return Audit{}, err
	}
	imageKeys := make([]string, 0, len(in.Images))
	for _, header := range in.Images {
		key, err := s.storeUpload(ctx, namespace, header)
		if err != nil {
			return Audit{}, err
		}
		imageKeys = append(imageKeys, key)
	}

	audit := Audit{
		ID:              auditID,
		AgentName:       strings.TrimSpace(in.AgentName),
		InteractionType: strings.TrimSpace(in.InteractionType),
		Status:          StatusQueued,
		Stage:           "uploaded",
		AudioKey:        audioKey,
		ImageKeys:       imageKeys,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, audit); err != nil {
		return Audit{}, err
	}

	telemetry.Info("audit.created", map[string]any{
		"audit_id":         auditID,
		"interaction_type": audit.InteractionType,
		"image_count":      len(imageKeys),
	})

	if s.Launch != nil {
		go s.Launch(context.Background(), auditID)
	}
	return audit, nil
}

// Get returns an audit by ID.
func (s *Service) Get(ctx context.Context, auditID string) (Audit, error) {
	if auditID == "" {
		return Audit{}, fmt.Errorf("%w: audit id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, auditID)
}

// List returns audits ordered newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Audit, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Activity returns the activity log for an audit.
func (s *Service) Activity(ctx context.Context, auditID string) ([]Activity, error) {
	if auditID == "" {
		return nil, fmt.Errorf("%w: audit id is required", ErrInvalidInput)
	}
	if _, err := s.Repo.GetByID(ctx, auditID); err != nil {
		return nil, err
	}
	return s.Repo.ListActivity(ctx, auditID)
}

// OpenArtifact returns a reader over the finished spreadsheet.
func (s *Service) OpenArtifact(ctx context.Context, auditID string) (io.ReadCloser, error) {
	audit, err := s.Repo.GetByID(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if audit.Status != StatusCompleted || audit.ArtifactKey == "" {
		return nil, ErrArtifactNotReady
	}
	return s.Store.Open(ctx, audit.ArtifactKey)
}

func (s *Service) storeUpload(ctx context.Context, namespace string, header *multipart.FileHeader) (string, error) {
	name, err := util.SanitizeFileName(header.Filename)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("%w: unable to read %s", ErrInvalidInput, name)
	}
	defer file.Close()

	key, _, _, err := s.Store.Save(ctx, namespace, name, file)
	if err != nil {
		return "", fmt.Errorf("store upload %s: %w", name, err)
	}
	return key, nil
}
