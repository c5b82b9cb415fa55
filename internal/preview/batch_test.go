package preview_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

func buildBatch(n int) []domain.LinkRef {
	links := make([]domain.LinkRef, n)
	for i := range links {
		links[i] = domain.LinkRef{
			ID:  fmt.Sprintf("00000000-0000-4000-8000-%012d", i),
			URL: fmt.Sprintf("https://example.com/post-%d", i),
		}
	}
	return links
}

func firedAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// expectStoredLinks serves every batch link from the store as a pending link
func (m *testServiceMocks) expectStoredLinks(links []domain.LinkRef) {
	byID := make(map[string]string, len(links))
	for _, l := range links {
		byID[l.ID] = l.URL
	}
	m.store.EXPECT().GetLinkByID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string) (*schema.Link, error) {
			return buildLink(id, byID[id]), nil
		}).AnyTimes()
	m.classifier.EXPECT().IsSocial(gomock.Any(), gomock.Any()).Return(false).AnyTimes()
	m.orchestrator.EXPECT().Classify(gomock.Any()).
		Return(classifier.Classification{Type: domain.PreviewTypeWebpage}).AnyTimes()
}

func TestBatchFetchPreviews_IsolatesFailures(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	links := buildBatch(12)
	broken := links[7]
	broken.URL = "https://example.com/broken"
	links[7] = broken
	m.expectStoredLinks(links)

	var running, maxRunning int32
	m.orchestrator.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rawURL string) (*domain.Metadata, error) {
			n := atomic.AddInt32(&running, 1)
			defer atomic.AddInt32(&running, -1)
			for {
				cur := atomic.LoadInt32(&maxRunning)
				if n <= cur || atomic.CompareAndSwapInt32(&maxRunning, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)

			if rawURL == broken.URL {
				return nil, domain.NewNotFoundError("page not found")
			}
			return buildPage(rawURL, now), nil
		}).Times(12)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(true, nil).Times(11)
	m.store.EXPECT().CommitPreviewFailure(gomock.Any(), gomock.Any()).Return(true, nil).Times(1)

	// 12 links in waves of 5 pause twice
	m.clock.EXPECT().After(time.Second).DoAndReturn(firedAfter).Times(2)

	results := m.service.BatchFetchPreviews(context.Background(), links)

	require.Len(t, results, 12)
	succeeded := 0
	for id, res := range results {
		if res.Success {
			succeeded++
			continue
		}
		assert.Equal(t, broken.ID, id)
		require.NotNil(t, res.Error)
		assert.Equal(t, domain.ErrorKindNotFound, res.Error.Kind)
	}
	assert.Equal(t, 11, succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(5))
}

func TestBatchFetchPreviews_PanicIsContained(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	links := buildBatch(3)
	m.expectStoredLinks(links)
	m.orchestrator.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rawURL string) (*domain.Metadata, error) {
			if rawURL == links[1].URL {
				panic("unexpected nil body")
			}
			return buildPage(rawURL, now), nil
		}).Times(3)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	results := m.service.BatchFetchPreviews(context.Background(), links)

	require.Len(t, results, 3)
	assert.True(t, results[links[0].ID].Success)
	assert.True(t, results[links[2].ID].Success)
	failed := results[links[1].ID]
	assert.False(t, failed.Success)
	require.NotNil(t, failed.Error)
	assert.Equal(t, domain.ErrorKindNetwork, failed.Error.Kind)
}

func TestBatchFetchPreviews_CanceledBetweenWaves(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	links := buildBatch(8)
	m.expectStoredLinks(links)

	var fetched sync.Map
	m.orchestrator.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rawURL string) (*domain.Metadata, error) {
			fetched.Store(rawURL, true)
			return buildPage(rawURL, now), nil
		}).Times(5)
	m.store.EXPECT().CommitPreviewSuccess(gomock.Any(), gomock.Any()).Return(true, nil).Times(5)
	m.clock.EXPECT().After(time.Second).
		DoAndReturn(func(time.Duration) <-chan time.Time {
			cancel()
			return make(chan time.Time)
		}).Times(1)

	results := m.service.BatchFetchPreviews(ctx, links)

	require.Len(t, results, 8)
	for i, link := range links {
		res := results[link.ID]
		if i < 5 {
			assert.True(t, res.Success, link.ID)
			_, ok := fetched.Load(link.URL)
			assert.True(t, ok)
			continue
		}
		assert.False(t, res.Success, link.ID)
		require.NotNil(t, res.Error)
		assert.Equal(t, domain.ErrorKindNetwork, res.Error.Kind)
	}
}

func TestBatchFetchPreviews_Empty(t *testing.T) {
	m := setupTestService(t)
	defer m.tearDown()

	results := m.service.BatchFetchPreviews(context.Background(), nil)

	assert.NotNil(t, results)
	assert.Empty(t, results)
}
