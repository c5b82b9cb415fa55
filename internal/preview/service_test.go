package preview_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/mocks"
	"github.com/feral-file/ff-link-preview/internal/preview"
	"github.com/feral-file/ff-link-preview/internal/store"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

const (
	testLinkID = "0b7c6a3e-2f4d-4d8e-9a51-3c2f1e0d9b71"
	testURL    = "https://example.com/article"
)

type testServiceMocks struct {
	ctrl         *gomock.Controller
	orchestrator *mocks.MockOrchestrator
	classifier   *mocks.MockClassifier
	store        *mocks.MockStore
	clock        *mocks.MockClock
	service      preview.Service
}

func setupTestService(t *testing.T) *testServiceMocks {
	ctrl := gomock.NewController(t)
	m := &testServiceMocks{
		ctrl:         ctrl,
		orchestrator: mocks.NewMockOrchestrator(ctrl),
		classifier:   mocks.NewMockClassifier(ctrl),
		store:        mocks.NewMockStore(ctrl),
		clock:        mocks.NewMockClock(ctrl),
	}
	m.clock.EXPECT().Now().Return(now).AnyTimes()
	m.clock.EXPECT().Since(gomock.Any()).Return(time.Millisecond).AnyTimes()

	m.service = preview.NewService(preview.Config{
		WaveSize:                   5,
		WaveDelay:                  time.Second,
		ItemTimeout:                5 * time.Second,
		CommitRetryInitialInterval: time.Millisecond,
		CommitRetryMaxElapsedTime:  50 * time.Millisecond,
	}, m.orchestrator, m.classifier, m.store, adapter.NewJSON(), m.clock)
	return m
}

func (m *testServiceMocks) tearDown() {
	m.ctrl.Finish()
}

func buildLink(id, url string) *schema.Link {
	return &schema.Link{
		ID:            id,
		ProfileID:     "profile-1",
		URL:           url,
		PreviewStatus: domain.PreviewStatusPending,
	}
}

func buildPage(title string, fetchedAt time.Time) *domain.Metadata {
	md := domain.NewWebpageMetadata(&domain.WebpageMetadata{Title: title, Domain: "example.com"})
	md.Stamp(fetchedAt)
	return md
}

func storedLink(t *testing.T, md *domain.Metadata) *schema.Link {
	data, err := adapter.NewJSON().Marshal(md)
	require.NoError(t, err)

	link := buildLink(testLinkID, testURL)
	link.PreviewStatus = domain.PreviewStatusSuccess
	link.PreviewMetadata = datatypes.JSON(data)
	link.PreviewFetchedAt = &md.FetchedAt
	link.PreviewExpiresAt = &md.ExpiresAt
	return link
}

func TestFetchPreviewMetadata(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	md := buildPage("Article", now)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(md, nil)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), "https://example.com/missing").
		Return(nil, domain.NewNotFoundError("page not found"))

	res := m.service.FetchPreviewMetadata(context.Background(), testURL)
	assert.True(t, res.Success)
	assert.Equal(t, md, res.Metadata)
	assert.Nil(t, res.Error)

	res = m.service.FetchPreviewMetadata(context.Background(), "https://example.com/missing")
	assert.False(t, res.Success)
	assert.Nil(t, res.Metadata)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.ErrorKindNotFound, res.Error.Kind)
	assert.False(t, res.Error.Retryable)
}

func TestRefreshLinkPreview_CommitsSuccess(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	md := buildPage("Article", now)
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(md, nil)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in store.CommitPreviewSuccessInput) (bool, error) {
			assert.Equal(t, testLinkID, in.LinkID)
			assert.Equal(t, now, in.FetchedAt)
			assert.Equal(t, now.Add(7*24*time.Hour), in.ExpiresAt)
			assert.Len(t, in.Hash, 64)

			var decoded domain.Metadata
			require.NoError(t, adapter.NewJSON().Unmarshal(in.Metadata, &decoded))
			assert.Equal(t, domain.PreviewTypeWebpage, decoded.Type)
			assert.Equal(t, "Article", decoded.Title())
			return true, nil
		})

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

	assert.True(t, res.Success)
	assert.Equal(t, md, res.Metadata)
}

func TestRefreshLinkPreview_FingerprintIgnoresFetchTime(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	var hashes []string
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil).Times(2)
	m.classifier.EXPECT().IsSocial(gomock.Any(), testURL).Return(false).Times(2)
	gomock.InOrder(
		m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(buildPage("Article", now), nil),
		m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(buildPage("Article", now.Add(time.Hour)), nil),
	)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in store.CommitPreviewSuccessInput) (bool, error) {
			hashes = append(hashes, in.Hash)
			return true, nil
		}).Times(2)

	m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)
	m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

	require.Len(t, hashes, 2)
	assert.Equal(t, hashes[0], hashes[1])
}

func TestRefreshLinkPreview_CommitsFailure(t *testing.T) {
	repoURL := "https://github.com/acme/secret"

	m := setupTestService(t)
	defer m.tearDown()

	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, repoURL), nil)
	m.classifier.EXPECT().IsSocial("", repoURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), repoURL).
		Return(nil, domain.NewNotFoundError("repository not found"))
	m.orchestrator.EXPECT().Classify(repoURL).Return(classifier.Classification{Type: domain.PreviewTypeRepo})
	m.store.EXPECT().CommitPreviewFailure(gomock.Any(), store.CommitPreviewFailureInput{
		LinkID:    testLinkID,
		Type:      domain.PreviewTypeRepo,
		Error:     "NOT_FOUND: repository not found",
		Retryable: false,
		FetchedAt: now,
	}).Return(true, nil)

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, repoURL)

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.ErrorKindNotFound, res.Error.Kind)
}

func TestRefreshLinkPreview_ShortCircuits(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(m *testServiceMocks)
		wantKind domain.ErrorKind
	}{
		{
			name: "social category is rejected without fetching",
			setup: func(m *testServiceMocks) {
				link := buildLink(testLinkID, "https://twitter.com/someone")
				link.Category = "Social"
				m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(link, nil)
				m.classifier.EXPECT().IsSocial("Social", "https://twitter.com/someone").Return(true)
				m.store.EXPECT().ExcludePreview(gomock.Any(), gomock.Any()).Return(true, nil)
			},
			wantKind: domain.ErrorKindInvalidURL,
		},
		{
			name: "missing link is not found",
			setup: func(m *testServiceMocks) {
				m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(nil, nil)
			},
			wantKind: domain.ErrorKindNotFound,
		},
		{
			name: "store failure is a network error",
			setup: func(m *testServiceMocks) {
				m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(nil, errors.New("connection refused"))
			},
			wantKind: domain.ErrorKindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupTestService(t)
			defer m.tearDown()
			tt.setup(m)

			res := m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantKind, res.Error.Kind)
		})
	}
}

func TestRefreshLinkPreview_FetchesStoredURL(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	storedURL := "https://example.com/mine"
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, storedURL), nil)
	m.classifier.EXPECT().IsSocial("", storedURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), storedURL).Return(buildPage("Mine", now), nil)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in store.CommitPreviewSuccessInput) (bool, error) {
			var decoded domain.Metadata
			require.NoError(t, adapter.NewJSON().Unmarshal(in.Metadata, &decoded))
			assert.Equal(t, "Mine", decoded.Title())
			return true, nil
		})

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, "https://example.com/other")

	assert.True(t, res.Success)
	assert.Equal(t, "Mine", res.Metadata.Title())
}

func TestRefreshLinkPreview_SocialStoredURLIsExcluded(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	socialURL := "https://twitter.com/someone"
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, socialURL), nil)
	m.classifier.EXPECT().IsSocial("", socialURL).Return(true)
	m.store.EXPECT().ExcludePreview(gomock.Any(), store.ExcludePreviewInput{
		LinkID: testLinkID,
		Reason: "INVALID_URL: social links are excluded from previews",
		At:     now,
	}).Return(true, nil)

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, "https://example.com/other")

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.ErrorKindInvalidURL, res.Error.Kind)
	assert.False(t, res.Error.Retryable)
}

func TestRefreshLinkPreview_SocialExclusionIsRecordedOnce(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	reason := "INVALID_URL: social links are excluded from previews"
	link := buildLink(testLinkID, "https://twitter.com/someone")
	link.PreviewStatus = domain.PreviewStatusFailed
	link.PreviewRetryable = false
	link.PreviewError = &reason
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(link, nil)
	m.classifier.EXPECT().IsSocial("", link.URL).Return(true)

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, link.URL)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindInvalidURL, res.Error.Kind)
}

func TestRefreshLinkPreview_RetriesCommit(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	md := buildPage("Article", now)
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(md, nil)
	gomock.InOrder(
		m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(false, errors.New("deadlock detected")),
		m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(true, nil),
	)

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

	assert.True(t, res.Success)
	assert.Equal(t, md, res.Metadata)
}

func TestRefreshLinkPreview_CommitExhaustedStillReturnsMetadata(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	md := buildPage("Article", now)
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(md, nil)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).
		Return(false, errors.New("database is down")).MinTimes(1)

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

	assert.True(t, res.Success)
	assert.Equal(t, md, res.Metadata)
}

func TestRefreshLinkPreview_StaleCommitReturnsStoredPreview(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	older := buildPage("Old title", now.Add(-time.Minute))
	newer := buildPage("New title", now.Add(time.Minute))

	gomock.InOrder(
		m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil),
		m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(storedLink(t, newer), nil),
	)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).Return(older, nil)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(false, nil)

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

	assert.True(t, res.Success)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "New title", res.Metadata.Title())
	assert.True(t, newer.FetchedAt.Equal(res.Metadata.FetchedAt))
}

func TestRefreshLinkPreview_SharesInFlightFetch(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	entered := make(chan struct{})
	release := make(chan struct{})

	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil).Times(1)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false).Times(1)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).
		DoAndReturn(func(context.Context, string) (*domain.Metadata, error) {
			close(entered)
			<-release
			return buildPage("Article", now), nil
		}).Times(1)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(true, nil).Times(1)

	results := make([]domain.Result, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)
	}()

	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Same(t, results[0].Metadata, results[1].Metadata)
}

func TestRefreshLinkPreview_CanceledCallerDoesNotAbortFetch(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	committed := make(chan struct{})
	release := make(chan struct{})

	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).
		DoAndReturn(func(ctx context.Context, _ string) (*domain.Metadata, error) {
			<-release
			assert.NoError(t, ctx.Err())
			return buildPage("Article", now), nil
		})
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, store.CommitPreviewSuccessInput) (bool, error) {
			close(committed)
			return true, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := m.service.RefreshLinkPreview(ctx, testLinkID, testURL)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorKindNetwork, res.Error.Kind)

	close(release)
	select {
	case <-committed:
	case <-time.After(2 * time.Second):
		t.Fatal("shared fetch was not committed")
	}
}

func TestRefreshLinkPreview_RecoversPanic(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(buildLink(testLinkID, testURL), nil)
	m.classifier.EXPECT().IsSocial("", testURL).Return(false)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), testURL).
		DoAndReturn(func(context.Context, string) (*domain.Metadata, error) {
			panic("nil map write")
		})

	res := m.service.RefreshLinkPreview(context.Background(), testLinkID, testURL)

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.ErrorKindNetwork, res.Error.Kind)
}

func TestGetCachedPreview(t *testing.T) {
	fresh := buildPage("Article", now.Add(-time.Hour))
	stale := buildPage("Article", now.Add(-8*24*time.Hour))

	tests := []struct {
		name      string
		link      func(t *testing.T) *schema.Link
		wantTitle string
	}{
		{
			name:      "fresh success is returned",
			link:      func(t *testing.T) *schema.Link { return storedLink(t, fresh) },
			wantTitle: "Article",
		},
		{
			name: "expired success is not returned",
			link: func(t *testing.T) *schema.Link { return storedLink(t, stale) },
		},
		{
			name: "failed preview is not returned",
			link: func(t *testing.T) *schema.Link {
				link := storedLink(t, fresh)
				link.PreviewStatus = domain.PreviewStatusFailed
				return link
			},
		},
		{
			name: "missing link is not returned",
			link: func(t *testing.T) *schema.Link { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupTestService(t)
			defer m.tearDown()
			m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(tt.link(t), nil)

			md, err := m.service.GetCachedPreview(context.Background(), testLinkID)

			require.NoError(t, err)
			if tt.wantTitle == "" {
				assert.Nil(t, md)
				return
			}
			require.NotNil(t, md)
			assert.Equal(t, tt.wantTitle, md.Title())
		})
	}
}

func TestGetCachedPreview_StoreError(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(nil, errors.New("connection refused"))

	md, err := m.service.GetCachedPreview(context.Background(), testLinkID)

	assert.Error(t, err)
	assert.Nil(t, md)
}

func TestNeedsPreviewRefresh(t *testing.T) {
	fresh := buildPage("Article", now.Add(-time.Hour))
	atExpiry := buildPage("Article", now.Add(-7*24*time.Hour))

	tests := []struct {
		name   string
		link   func(t *testing.T) *schema.Link
		social bool
		want   bool
	}{
		{
			name: "missing link",
			link: func(t *testing.T) *schema.Link { return nil },
			want: true,
		},
		{
			name: "pending without metadata",
			link: func(t *testing.T) *schema.Link { return buildLink(testLinkID, testURL) },
			want: true,
		},
		{
			name: "fresh success",
			link: func(t *testing.T) *schema.Link { return storedLink(t, fresh) },
			want: false,
		},
		{
			name: "success at its expiry instant",
			link: func(t *testing.T) *schema.Link { return storedLink(t, atExpiry) },
			want: true,
		},
		{
			name: "failed with metadata",
			link: func(t *testing.T) *schema.Link {
				link := storedLink(t, fresh)
				link.PreviewStatus = domain.PreviewStatusFailed
				return link
			},
			want: true,
		},
		{
			name: "expired status",
			link: func(t *testing.T) *schema.Link {
				link := storedLink(t, fresh)
				link.PreviewStatus = domain.PreviewStatusExpired
				return link
			},
			want: true,
		},
		{
			name:   "social link never refreshes",
			link:   func(t *testing.T) *schema.Link { return buildLink(testLinkID, "https://x.com/someone") },
			social: true,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupTestService(t)
			defer m.tearDown()
			link := tt.link(t)
			m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(link, nil)
			if link != nil {
				m.classifier.EXPECT().IsSocial(link.Category, link.URL).Return(tt.social)
			}

			got, err := m.service.NeedsPreviewRefresh(context.Background(), testLinkID)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateURL(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	assert.True(t, m.service.ValidateURL("https://example.com"))
	assert.False(t, m.service.ValidateURL("http://127.0.0.1/admin"))
	assert.False(t, m.service.ValidateURL("javascript:alert(1)"))
}

func TestGetPreviewState(t *testing.T) {
	fresh := buildPage("Article", now.Add(-time.Hour))
	stale := buildPage("Article", now.Add(-8*24*time.Hour))

	tests := []struct {
		name         string
		link         func(t *testing.T) *schema.Link
		wantStatus   domain.PreviewStatus
		wantRefresh  bool
		wantMetadata bool
	}{
		{
			name:         "fresh success",
			link:         func(t *testing.T) *schema.Link { return storedLink(t, fresh) },
			wantStatus:   domain.PreviewStatusSuccess,
			wantMetadata: true,
		},
		{
			name:         "success past expiration reads as expired",
			link:         func(t *testing.T) *schema.Link { return storedLink(t, stale) },
			wantStatus:   domain.PreviewStatusExpired,
			wantRefresh:  true,
			wantMetadata: true,
		},
		{
			name: "failure keeps the last good metadata",
			link: func(t *testing.T) *schema.Link {
				link := storedLink(t, fresh)
				link.PreviewStatus = domain.PreviewStatusFailed
				return link
			},
			wantStatus:   domain.PreviewStatusFailed,
			wantRefresh:  true,
			wantMetadata: true,
		},
		{
			name: "failure stub has no metadata",
			link: func(t *testing.T) *schema.Link {
				link := buildLink(testLinkID, testURL)
				link.PreviewStatus = domain.PreviewStatusFailed
				link.PreviewMetadata = datatypes.JSON(`{"type":"webpage","error":"NOT_FOUND: gone"}`)
				return link
			},
			wantStatus:  domain.PreviewStatusFailed,
			wantRefresh: true,
		},
		{
			name:        "pending",
			link:        func(t *testing.T) *schema.Link { return buildLink(testLinkID, testURL) },
			wantStatus:  domain.PreviewStatusPending,
			wantRefresh: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupTestService(t)
			defer m.tearDown()
			link := tt.link(t)
			m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(link, nil)
			m.classifier.EXPECT().IsSocial(link.Category, link.URL).Return(false)

			state, err := m.service.GetPreviewState(context.Background(), testLinkID)

			require.NoError(t, err)
			require.NotNil(t, state)
			assert.Same(t, link, state.Link)
			assert.Equal(t, tt.wantStatus, state.Status)
			assert.Equal(t, tt.wantRefresh, state.NeedsRefresh)
			if !tt.wantMetadata {
				assert.Nil(t, state.Metadata)
				return
			}
			require.NotNil(t, state.Metadata)
			assert.Equal(t, "Article", state.Metadata.Title())
			assert.Empty(t, state.Metadata.Error)
		})
	}
}

func TestGetPreviewState_MissingLink(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()
	m.store.EXPECT().GetLinkByID(gomock.Any(), testLinkID).Return(nil, nil)

	state, err := m.service.GetPreviewState(context.Background(), testLinkID)

	require.NoError(t, err)
	assert.Nil(t, state)
}
