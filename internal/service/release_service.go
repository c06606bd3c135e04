package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/validator"
	"go.uber.org/zap"
)

// ReleaseService публикация релизов и подсчёт хэша артефакта
type ReleaseService interface {
	CreateRelease(ctx context.Context, input *models.CreateReleaseInput) (*models.Release, error)
	GetRelease(ctx context.Context, userID, id int64) (*models.Release, error)
}

type releaseService struct {
	releases       repository.ReleaseRepository
	hasher         *ArtifactHasher
	queue          TaskSubmitter
	events         EventPublisher
	asyncSizeBytes int64
	logger         *zap.Logger
}

type hashTask struct {
	ReleaseID int64
	URL       string
}

func NewReleaseService(
	releases repository.ReleaseRepository,
	hasher *ArtifactHasher,
	queue TaskSubmitter,
	events EventPublisher,
	asyncSizeBytes int64,
	logger *zap.Logger,
) ReleaseService {
	return &releaseService{
		releases:       releases,
		hasher:         hasher,
		queue:          queue,
		events:         events,
		asyncSizeBytes: asyncSizeBytes,
		logger:         logger,
	}
}

// CreateRelease сохраняет релиз, считает хэш артефакта (маленькие сразу,
// большие и неизвестного размера в очереди) и публикует release.published
func (s *releaseService) CreateRelease(ctx context.Context, input *models.CreateReleaseInput) (*models.Release, error) {
	version := strings.TrimSpace(input.Version)
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidRequest)
	}
	artifactURL, err := validator.ValidateTargetURL(input.ArtifactURL, validator.DefaultSchemes)
	if err != nil {
		return nil, fmt.Errorf("%w: artifact_url: %w", ErrInvalidRequest, err)
	}

	release := &models.Release{
		UserID:      input.UserID,
		Version:     version,
		Notes:       strings.TrimSpace(input.Notes),
		ArtifactURL: artifactURL,
	}
	if err := s.releases.Create(ctx, release); err != nil {
		return nil, err
	}

	s.hashArtifact(ctx, release)
	s.publish(release)

	return release, nil
}

func (s *releaseService) hashArtifact(ctx context.Context, release *models.Release) {
	size, known := s.hasher.Size(ctx, release.ArtifactURL)
	if !known || size >= s.asyncSizeBytes {
		taskID := "hash-" + strconv.FormatInt(release.ID, 10)
		task := hashTask{ReleaseID: release.ID, URL: release.ArtifactURL}
		if !s.queue.Submit(taskID, TaskArtifactHash, s.runHashTask, task) {
			s.logger.Warn("Хэш артефакта пропущен: очередь заполнена",
				zap.Int64("release_id", release.ID),
			)
		}
		return
	}

	digest, err := s.hasher.Hash(ctx, release.ArtifactURL)
	if err != nil {
		s.logger.Warn("Не удалось посчитать хэш артефакта",
			zap.Int64("release_id", release.ID),
			zap.Error(err),
		)
		return
	}
	if err := s.releases.SetArtifactHash(ctx, release.ID, digest); err != nil {
		s.logger.Warn("Не удалось сохранить хэш артефакта",
			zap.Int64("release_id", release.ID),
			zap.Error(err),
		)
		return
	}
	release.ArtifactSHA256 = &digest
}

func (s *releaseService) runHashTask(ctx context.Context, arg any) error {
	t, ok := arg.(hashTask)
	if !ok {
		return fmt.Errorf("unexpected task argument %T", arg)
	}

	digest, err := s.hasher.Hash(ctx, t.URL)
	if err != nil {
		return err
	}
	if err := s.releases.SetArtifactHash(ctx, t.ReleaseID, digest); err != nil {
		return err
	}

	s.logger.Info("Хэш артефакта посчитан",
		zap.Int64("release_id", t.ReleaseID),
		zap.String("sha256", digest),
	)
	return nil
}

func (s *releaseService) publish(release *models.Release) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"event":        models.EventReleasePublished,
		"release_id":   release.ID,
		"version":      release.Version,
		"artifact_url": release.ArtifactURL,
		"ts":           release.CreatedAt.UTC().Format(time.RFC3339),
	}
	if release.ArtifactSHA256 != nil {
		payload["artifact_sha256"] = *release.ArtifactSHA256
	}
	s.events.Publish(release.UserID, models.EventReleasePublished, payload)
}

func (s *releaseService) GetRelease(ctx context.Context, userID, id int64) (*models.Release, error) {
	release, err := s.releases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if release.UserID != userID {
		return nil, ErrForbidden
	}
	return release, nil
}
