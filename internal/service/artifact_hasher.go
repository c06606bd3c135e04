package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Таймауты работы с артефактами
const (
	artifactHeadTimeout = 5 * time.Second
	artifactHashTimeout = 30 * time.Second
)

// ArtifactHasher считает SHA-256 удалённого артефакта потоково
type ArtifactHasher struct {
	client      *http.Client
	headTimeout time.Duration
	hashTimeout time.Duration
}

// NewArtifactHasher client == nil означает http.DefaultClient
func NewArtifactHasher(client *http.Client) *ArtifactHasher {
	if client == nil {
		client = http.DefaultClient
	}
	return &ArtifactHasher{
		client:      client,
		headTimeout: artifactHeadTimeout,
		hashTimeout: artifactHashTimeout,
	}
}

// Size размер артефакта по HEAD. false, если размер неизвестен.
func (h *ArtifactHasher) Size(ctx context.Context, url string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, false
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

// Hash скачивает артефакт и возвращает hex SHA-256
func (h *ArtifactHasher) Hash(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.hashTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build artifact request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("artifact responded with status %d", resp.StatusCode)
	}

	digest := sha256.New()
	if _, err := io.Copy(digest, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
