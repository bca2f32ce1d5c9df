package proctorService

import (
	"ProctorEngine/internal/api/proctor"
	proctorRepository "ProctorEngine/internal/api/proctor/repository"
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/utils"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	session entity.ProctorSession
	getErr  error
}

func (f *fakeSessionStore) CreateSession(ctx context.Context, session entity.ProctorSession) error {
	return nil
}

func (f *fakeSessionStore) GetSessionByID(ctx context.Context, id string) (entity.ProctorSession, error) {
	return f.session, f.getErr
}

func (f *fakeSessionStore) CompleteSession(ctx context.Context, id string) error {
	return nil
}

type fakeFlagStore struct {
	flags     []entity.ProctorFlag
	created   []entity.ProctorFlag
	createErr error
}

func (f *fakeFlagStore) CreateFlag(ctx context.Context, flag entity.ProctorFlag) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, flag)
	return nil
}

func (f *fakeFlagStore) GetFlagsBySessionID(ctx context.Context, sessionID string) ([]entity.ProctorFlag, error) {
	return f.flags, nil
}

type fakeRepository struct {
	sessions *fakeSessionStore
	flags    *fakeFlagStore
}

func (f *fakeRepository) NewClient(tx bool) (proctorRepository.Client, error) {
	return proctorRepository.Client{
		Sessions: f.sessions,
		Flags:    f.flags,
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type fakeObjectStore struct {
	uploaded  []string
	presigned []string
	deleted   []string
}

func (f *fakeObjectStore) UploadBytes(key string, data []byte, contentType string) (string, error) {
	f.uploaded = append(f.uploaded, key)
	return "https://bucket.example/" + key, nil
}

func (f *fakeObjectStore) PresignUrl(key string) (string, error) {
	f.presigned = append(f.presigned, key)
	return "https://bucket.example/" + key + "?signed", nil
}

func (f *fakeObjectStore) DeleteFile(key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestGetFlagsPresignsEscalationScreenshots(t *testing.T) {
	repo := &fakeRepository{
		sessions: &fakeSessionStore{session: entity.ProctorSession{
			ID:     "01S",
			Status: entity.SessionCompleted,
		}},
		flags: &fakeFlagStore{flags: []entity.ProctorFlag{
			{ID: "01F1", SessionID: "01S", FlagType: "phone_detected", Source: "gemini", Confidence: 0.92},
			{ID: "01F2", SessionID: "01S", FlagType: "tab_switch", Source: "monitor", Confidence: 1},
		}},
	}
	store := &fakeObjectStore{}
	svc := &proctorService{log: testLogger(), repo: repo, s3Client: store, now: time.Now}

	res, err := svc.GetFlags(context.Background(), "01S")
	require.NoError(t, err)
	assert.Equal(t, string(entity.SessionCompleted), res.Status)
	require.Len(t, res.Flags, 2)

	assert.Contains(t, res.Flags[0].ScreenshotURL, "sessions/01S/flags/01F1.jpg")
	assert.Empty(t, res.Flags[1].ScreenshotURL, "monitor flags never have a screenshot")
	assert.Equal(t, []string{"sessions/01S/flags/01F1.jpg"}, store.presigned)
}

func TestGetFlagsUnknownSession(t *testing.T) {
	repo := &fakeRepository{
		sessions: &fakeSessionStore{getErr: proctor.ErrSessionNotFound},
		flags:    &fakeFlagStore{},
	}
	svc := &proctorService{log: testLogger(), repo: repo}

	_, err := svc.GetFlags(context.Background(), "missing")
	assert.ErrorIs(t, err, proctor.ErrSessionNotFound)
}

func TestPersistFlagRemovesOrphanedScreenshot(t *testing.T) {
	repo := &fakeRepository{
		sessions: &fakeSessionStore{},
		flags:    &fakeFlagStore{createErr: errors.New("db down")},
	}
	store := &fakeObjectStore{}
	clock := newFakeClock()
	e := newEscalator(testLogger(), nil, nil, repo, store, utils.New(), clock.Now)

	err := e.persistFlag(context.Background(), "01S", []byte("frame"), "spot_check", "gemini", entity.VisionAnalysisResult{
		Violation:  true,
		Reason:     "phone visible on desk",
		Confidence: 0.9,
		FlagType:   "phone_detected",
	})
	require.Error(t, err)
	require.Len(t, store.uploaded, 1)
	assert.Equal(t, store.uploaded, store.deleted, "a screenshot without its flag row is removed")
}
