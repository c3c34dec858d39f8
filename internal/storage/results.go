package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResultStore persists job results as JSON documents at deterministic keys.
// Same (jobID, stage) always maps to the same key; a re-run overwrites
// rather than duplicating.
type ResultStore struct {
	objects ObjectStore
}

// NewResultStore wraps an object store backend.
func NewResultStore(objects ObjectStore) *ResultStore {
	return &ResultStore{objects: objects}
}

// ResultKey derives the object key for a job's stage output.
func ResultKey(jobID, stage string) string {
	return fmt.Sprintf("results/%s/%s.json", jobID, stage)
}

// ImageKey derives the object key for one generated image in a fan-out.
func ImageKey(jobID, role string, index int, ext string) string {
	return fmt.Sprintf("results/%s/images/%s-%02d%s", jobID, role, index, ext)
}

// Save marshals payload and writes it at the job's stage key, returning the
// key. The latest write wins.
func (s *ResultStore) Save(ctx context.Context, jobID, stage string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("result store: marshal %s/%s: %w", jobID, stage, err)
	}
	key := ResultKey(jobID, stage)
	if err := s.objects.Put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// Load reads the job's stage document into out. Returns ErrNotFound when no
// result exists yet.
func (s *ResultStore) Load(ctx context.Context, jobID, stage string, out any) error {
	data, err := s.objects.Get(ctx, ResultKey(jobID, stage))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("result store: unmarshal %s/%s: %w", jobID, stage, err)
	}
	return nil
}

// LoadRaw reads the job's stage document without decoding it.
func (s *ResultStore) LoadRaw(ctx context.Context, jobID, stage string) ([]byte, error) {
	return s.objects.Get(ctx, ResultKey(jobID, stage))
}

// SaveImage writes one generated image and returns its key.
func (s *ResultStore) SaveImage(ctx context.Context, jobID, role string, index int, ext, contentType string, data []byte) (string, error) {
	key := ImageKey(jobID, role, index, ext)
	if err := s.objects.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// LoadObject reads an arbitrary object key (image payloads, library files).
func (s *ResultStore) LoadObject(ctx context.Context, key string) ([]byte, error) {
	return s.objects.Get(ctx, key)
}

// Copy replicates a stage document from one job to another. Used by the
// dev-mode replay path to stand in for provider-backed steps.
func (s *ResultStore) Copy(ctx context.Context, fromJobID, toJobID, stage string) (string, error) {
	data, err := s.objects.Get(ctx, ResultKey(fromJobID, stage))
	if err != nil {
		return "", err
	}
	key := ResultKey(toJobID, stage)
	if err := s.objects.Put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
