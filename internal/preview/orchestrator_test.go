package preview_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/mocks"
	"github.com/feral-file/ff-link-preview/internal/preview"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testOrchestratorMocks struct {
	ctrl         *gomock.Controller
	classifier   *mocks.MockClassifier
	github       *mocks.MockGitHubClient
	blogs        *mocks.MockBlogFetcher
	scraper      *mocks.MockScraper
	clock        *mocks.MockClock
	orchestrator preview.Orchestrator
}

func setupTestOrchestrator(t *testing.T) *testOrchestratorMocks {
	ctrl := gomock.NewController(t)
	m := &testOrchestratorMocks{
		ctrl:       ctrl,
		classifier: mocks.NewMockClassifier(ctrl),
		github:     mocks.NewMockGitHubClient(ctrl),
		blogs:      mocks.NewMockBlogFetcher(ctrl),
		scraper:    mocks.NewMockScraper(ctrl),
		clock:      mocks.NewMockClock(ctrl),
	}
	m.orchestrator = preview.NewOrchestrator(m.classifier, m.github, m.blogs, m.scraper, m.clock)
	return m
}

func (m *testOrchestratorMocks) tearDown() {
	m.ctrl.Finish()
}

func (m *testOrchestratorMocks) expectClock() {
	m.clock.EXPECT().Now().Return(now).AnyTimes()
	m.clock.EXPECT().Since(gomock.Any()).Return(10 * time.Millisecond).AnyTimes()
}

func TestOrchestratorFetch(t *testing.T) {
	repoURL := "https://github.com/golang/go"
	blogURL := "https://dev.to/ben/hello-world-4e7c"
	pageURL := "https://example.com/article"

	tests := []struct {
		name     string
		url      string
		setup    func(m *testOrchestratorMocks)
		wantKind domain.ErrorKind
		validate func(t *testing.T, md *domain.Metadata)
	}{
		{
			name:     "link-local address is rejected before classification",
			url:      "http://169.254.169.254/latest/meta-data",
			setup:    func(m *testOrchestratorMocks) {},
			wantKind: domain.ErrorKindInvalidURL,
		},
		{
			name:     "unsupported scheme is rejected",
			url:      "ftp://example.com/file",
			setup:    func(m *testOrchestratorMocks) {},
			wantKind: domain.ErrorKindInvalidURL,
		},
		{
			name: "repository is stamped with the repository ttl",
			url:  repoURL,
			setup: func(m *testOrchestratorMocks) {
				m.expectClock()
				m.classifier.EXPECT().Classify(repoURL).Return(classifier.Classification{
					Type: domain.PreviewTypeRepo, Owner: "golang", Repo: "go",
				})
				m.github.EXPECT().GetRepository(gomock.Any(), repoURL).Return(&domain.RepoMetadata{
					RepoName: "golang/go", Stars: 120000,
				}, nil)
			},
			validate: func(t *testing.T, md *domain.Metadata) {
				assert.Equal(t, domain.PreviewTypeRepo, md.Type)
				require.NotNil(t, md.Repo)
				assert.Equal(t, "golang/go", md.Repo.RepoName)
				assert.Equal(t, now, md.FetchedAt)
				assert.Equal(t, now.Add(24*time.Hour), md.ExpiresAt)
			},
		},
		{
			name: "repository failure propagates without fallback",
			url:  repoURL,
			setup: func(m *testOrchestratorMocks) {
				m.expectClock()
				m.classifier.EXPECT().Classify(repoURL).Return(classifier.Classification{Type: domain.PreviewTypeRepo})
				m.github.EXPECT().GetRepository(gomock.Any(), repoURL).
					Return(nil, domain.NewPrivateRepoError("repository is private"))
			},
			wantKind: domain.ErrorKindPrivateRepo,
		},
		{
			name: "blog post is stamped with the blog ttl",
			url:  blogURL,
			setup: func(m *testOrchestratorMocks) {
				m.expectClock()
				m.classifier.EXPECT().Classify(blogURL).Return(classifier.Classification{
					Type: domain.PreviewTypeBlog, Platform: domain.PlatformDevTo,
				})
				m.blogs.EXPECT().Fetch(gomock.Any(), domain.PlatformDevTo, blogURL).
					Return(&domain.BlogMetadata{Title: "Hello World", Platform: domain.PlatformDevTo}, nil)
			},
			validate: func(t *testing.T, md *domain.Metadata) {
				assert.Equal(t, domain.PreviewTypeBlog, md.Type)
				require.NotNil(t, md.Blog)
				assert.Equal(t, "Hello World", md.Blog.Title)
				assert.Equal(t, now.Add(7*24*time.Hour), md.ExpiresAt)
			},
		},
		{
			name: "blog adapter failure falls back to the scraper",
			url:  blogURL,
			setup: func(m *testOrchestratorMocks) {
				m.expectClock()
				m.classifier.EXPECT().Classify(blogURL).Return(classifier.Classification{
					Type: domain.PreviewTypeBlog, Platform: domain.PlatformDevTo,
				})
				m.blogs.EXPECT().Fetch(gomock.Any(), domain.PlatformDevTo, blogURL).
					Return(nil, domain.NewParseError("unexpected payload", nil))
				m.scraper.EXPECT().Scrape(gomock.Any(), blogURL).
					Return(&domain.WebpageMetadata{Title: "Hello World - DEV"}, nil)
			},
			validate: func(t *testing.T, md *domain.Metadata) {
				assert.Equal(t, domain.PreviewTypeWebpage, md.Type)
				require.NotNil(t, md.Webpage)
				assert.Nil(t, md.Blog)
				assert.Equal(t, "Hello World - DEV", md.Webpage.Title)
				assert.Equal(t, now.Add(7*24*time.Hour), md.ExpiresAt)
			},
		},
		{
			name: "fallback scraper failure is returned",
			url:  blogURL,
			setup: func(m *testOrchestratorMocks) {
				m.expectClock()
				m.classifier.EXPECT().Classify(blogURL).Return(classifier.Classification{
					Type: domain.PreviewTypeBlog, Platform: domain.PlatformDevTo,
				})
				m.blogs.EXPECT().Fetch(gomock.Any(), domain.PlatformDevTo, blogURL).
					Return(nil, domain.NewNetworkError("timeout", context.DeadlineExceeded))
				m.scraper.EXPECT().Scrape(gomock.Any(), blogURL).
					Return(nil, domain.NewNotFoundError("page not found"))
			},
			wantKind: domain.ErrorKindNotFound,
		},
		{
			name: "webpage is scraped",
			url:  pageURL,
			setup: func(m *testOrchestratorMocks) {
				m.expectClock()
				m.classifier.EXPECT().Classify(pageURL).Return(classifier.Classification{Type: domain.PreviewTypeWebpage})
				m.scraper.EXPECT().Scrape(gomock.Any(), pageURL).
					Return(&domain.WebpageMetadata{Title: "Article", Domain: "example.com"}, nil)
			},
			validate: func(t *testing.T, md *domain.Metadata) {
				assert.Equal(t, domain.PreviewTypeWebpage, md.Type)
				assert.Equal(t, "Article", md.Title())
				assert.True(t, md.HasBody())
				assert.Equal(t, now, md.FetchedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupTestOrchestrator(t)
			defer m.tearDown()
			tt.setup(m)

			md, err := m.orchestrator.Fetch(context.Background(), tt.url)

			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Nil(t, md)
				assert.Equal(t, tt.wantKind, domain.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, md)
			tt.validate(t, md)
		})
	}
}

func TestOrchestratorClassify(t *testing.T) {
	m := setupTestOrchestrator(t)
	defer m.tearDown()

	want := classifier.Classification{Type: domain.PreviewTypeBlog, Platform: domain.PlatformMedium}
	m.classifier.EXPECT().Classify("https://medium.com/@a/post-0123456789ab").Return(want)

	assert.Equal(t, want, m.orchestrator.Classify("https://medium.com/@a/post-0123456789ab"))
}
