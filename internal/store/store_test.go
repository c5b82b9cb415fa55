package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func stringPtr(s string) *string {
	return &s
}

func buildTestLink(url string, category string) CreateLinkInput {
	return CreateLinkInput{
		ID:         uuid.NewString(),
		ProfileID:  "profile-1",
		URL:        url,
		Title:      "My link",
		Category:   category,
		CustomIcon: stringPtr("rocket"),
		IconURL:    stringPtr("https://cdn.example.com/icon.png"),
	}
}

func buildRepoMetadata(t *testing.T, fetchedAt time.Time) []byte {
	md := domain.NewRepoMetadata(&domain.RepoMetadata{RepoName: "golang/go", Stars: 10, Topics: []string{}})
	md.Stamp(fetchedAt)
	data, err := json.Marshal(md)
	require.NoError(t, err)
	return data
}

func decodeMetadata(t *testing.T, link *schema.Link) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(link.PreviewMetadata, &out))
	return out
}

func commitSuccess(t *testing.T, store Store, linkID string, fetchedAt time.Time) bool {
	committed, err := store.CommitPreviewSuccess(context.Background(), CommitPreviewSuccessInput{
		LinkID:    linkID,
		Metadata:  buildRepoMetadata(t, fetchedAt),
		Hash:      "hash-" + fetchedAt.Format(time.RFC3339),
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(domain.RepoTTL),
	})
	require.NoError(t, err)
	return committed
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Test: Links
// =============================================================================

func testLinks(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create link starts pending", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://github.com/golang/go", "code"))
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatusPending, link.PreviewStatus)

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "https://github.com/golang/go", got.URL)
		assert.Equal(t, "code", got.Category)
		assert.Equal(t, domain.PreviewStatusPending, got.PreviewStatus)
		assert.False(t, got.HasPreviewMetadata())
		assert.Nil(t, got.PreviewFetchedAt)
		assert.True(t, got.PreviewRetryable)
	})

	t.Run("create link generates an id", func(t *testing.T) {
		input := buildTestLink("https://example.com", "")
		input.ID = ""

		link, err := store.CreateLink(ctx, input)
		require.NoError(t, err)
		_, err = uuid.Parse(link.ID)
		assert.NoError(t, err)
	})

	t.Run("missing or malformed id returns nil", func(t *testing.T) {
		got, err := store.GetLinkByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = store.GetLinkByID(ctx, "not-a-uuid")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("get links by ids skips unknown ids", func(t *testing.T) {
		a, err := store.CreateLink(ctx, buildTestLink("https://a.example.com", ""))
		require.NoError(t, err)
		b, err := store.CreateLink(ctx, buildTestLink("https://b.example.com", ""))
		require.NoError(t, err)

		links, err := store.GetLinksByIDs(ctx, []string{a.ID, b.ID, uuid.NewString(), "bogus"})
		require.NoError(t, err)
		require.Len(t, links, 2)

		var urls []string
		for _, l := range links {
			urls = append(urls, l.URL)
		}
		assert.ElementsMatch(t, []string{"https://a.example.com", "https://b.example.com"}, urls)

		links, err = store.GetLinksByIDs(ctx, []string{"bogus"})
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}

// =============================================================================
// Test: CommitPreviewSuccess
// =============================================================================

func testCommitPreviewSuccess(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("stores metadata without touching icon overrides", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://github.com/golang/go", "code"))
		require.NoError(t, err)

		assert.True(t, commitSuccess(t, store, link.ID, baseTime))

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatusSuccess, got.PreviewStatus)
		require.NotNil(t, got.PreviewFetchedAt)
		assert.True(t, got.PreviewFetchedAt.Equal(baseTime))
		require.NotNil(t, got.PreviewExpiresAt)
		assert.True(t, got.PreviewExpiresAt.Equal(baseTime.Add(24*time.Hour)))
		assert.Nil(t, got.PreviewError)
		require.NotNil(t, got.PreviewHash)
		assert.Equal(t, "hash-"+baseTime.Format(time.RFC3339), *got.PreviewHash)

		md := decodeMetadata(t, got)
		assert.Equal(t, "repo", md["type"])
		assert.Equal(t, "golang/go", md["repo"].(map[string]interface{})["repo_name"])

		assert.Equal(t, "rocket", *got.CustomIcon)
		assert.Equal(t, "https://cdn.example.com/icon.png", *got.IconURL)
		assert.Equal(t, "My link", got.Title)
	})

	t.Run("older fetch never overwrites a newer one", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://github.com/golang/go", ""))
		require.NoError(t, err)

		newer := baseTime.Add(time.Hour)
		assert.True(t, commitSuccess(t, store, link.ID, newer))
		assert.False(t, commitSuccess(t, store, link.ID, baseTime))

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		assert.True(t, got.PreviewFetchedAt.Equal(newer))
		assert.Equal(t, "hash-"+newer.Format(time.RFC3339), *got.PreviewHash)
	})

	t.Run("same fetch time is accepted", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://github.com/golang/go", ""))
		require.NoError(t, err)

		assert.True(t, commitSuccess(t, store, link.ID, baseTime))
		assert.True(t, commitSuccess(t, store, link.ID, baseTime))
	})

	t.Run("missing link is not committed", func(t *testing.T) {
		assert.False(t, commitSuccess(t, store, uuid.NewString(), baseTime))
		assert.False(t, commitSuccess(t, store, "bogus", baseTime))
	})
}

// =============================================================================
// Test: CommitPreviewFailure
// =============================================================================

func testCommitPreviewFailure(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("keeps existing metadata and expiration", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://github.com/golang/go", ""))
		require.NoError(t, err)
		require.True(t, commitSuccess(t, store, link.ID, baseTime))

		failedAt := baseTime.Add(30 * time.Hour)
		committed, err := store.CommitPreviewFailure(ctx, CommitPreviewFailureInput{
			LinkID:    link.ID,
			Type:      domain.PreviewTypeRepo,
			Error:     "RATE_LIMITED: GitHub rate limit exceeded",
			Retryable: true,
			FetchedAt: failedAt,
		})
		require.NoError(t, err)
		assert.True(t, committed)

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatusFailed, got.PreviewStatus)
		assert.True(t, got.PreviewFetchedAt.Equal(failedAt))
		assert.True(t, got.PreviewExpiresAt.Equal(baseTime.Add(24*time.Hour)))
		require.NotNil(t, got.PreviewError)
		assert.Equal(t, "RATE_LIMITED: GitHub rate limit exceeded", *got.PreviewError)
		assert.True(t, got.PreviewRetryable)

		md := decodeMetadata(t, got)
		assert.Equal(t, "repo", md["type"])
		assert.NotContains(t, md, "error", "the last good preview renders without the failure")
		assert.NotNil(t, md["repo"])

		assert.Equal(t, "rocket", *got.CustomIcon)
	})

	t.Run("link without metadata gets a typed stub", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://dev.to/ben/post", ""))
		require.NoError(t, err)

		committed, err := store.CommitPreviewFailure(ctx, CommitPreviewFailureInput{
			LinkID:    link.ID,
			Type:      domain.PreviewTypeBlog,
			Error:     "NOT_FOUND: article not found",
			Retryable: false,
			FetchedAt: baseTime,
		})
		require.NoError(t, err)
		assert.True(t, committed)

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatusFailed, got.PreviewStatus)
		assert.Nil(t, got.PreviewExpiresAt)
		assert.False(t, got.PreviewRetryable)

		md := decodeMetadata(t, got)
		assert.Equal(t, "blog", md["type"])
		assert.Equal(t, "NOT_FOUND: article not found", md["error"])
	})

	t.Run("failure after a stub refreshes the stub error", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://example.com/flaky", ""))
		require.NoError(t, err)

		for i, message := range []string{"NETWORK_ERROR: timeout", "NOT_FOUND: page not found"} {
			committed, err := store.CommitPreviewFailure(ctx, CommitPreviewFailureInput{
				LinkID:    link.ID,
				Type:      domain.PreviewTypeWebpage,
				Error:     message,
				FetchedAt: baseTime.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
			require.True(t, committed)
		}

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		md := decodeMetadata(t, got)
		assert.Equal(t, "webpage", md["type"])
		assert.Equal(t, "NOT_FOUND: page not found", md["error"])
	})

	t.Run("stale failure is dropped", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://github.com/golang/go", ""))
		require.NoError(t, err)
		require.True(t, commitSuccess(t, store, link.ID, baseTime))

		committed, err := store.CommitPreviewFailure(ctx, CommitPreviewFailureInput{
			LinkID:    link.ID,
			Type:      domain.PreviewTypeRepo,
			Error:     "NETWORK_ERROR: timeout",
			Retryable: true,
			FetchedAt: baseTime.Add(-time.Minute),
		})
		require.NoError(t, err)
		assert.False(t, committed)

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatusSuccess, got.PreviewStatus)
		assert.Nil(t, got.PreviewError)
	})
}

// =============================================================================
// Test: Sweeper queries
// =============================================================================

func testExpiryAndRefreshCandidates(t *testing.T, store Store) {
	ctx := context.Background()
	now := baseTime.Add(48 * time.Hour)

	create := func(url, category string) *schema.Link {
		link, err := store.CreateLink(ctx, buildTestLink(url, category))
		require.NoError(t, err)
		return link
	}
	fail := func(link *schema.Link, at time.Time, retryable bool) {
		committed, err := store.CommitPreviewFailure(ctx, CommitPreviewFailureInput{
			LinkID:    link.ID,
			Type:      domain.PreviewTypeWebpage,
			Error:     "failure",
			Retryable: retryable,
			FetchedAt: at,
		})
		require.NoError(t, err)
		require.True(t, committed)
	}

	pending := create("https://pending.example.com", "")
	social := create("https://twitter.com/someone", " Social ")
	stale := create("https://github.com/stale/repo", "")
	require.True(t, commitSuccess(t, store, stale.ID, baseTime))
	fresh := create("https://github.com/fresh/repo", "")
	require.True(t, commitSuccess(t, store, fresh.ID, now.Add(-time.Hour)))
	oldFailure := create("https://old-failure.example.com", "")
	fail(oldFailure, now.Add(-2*time.Hour), true)
	recentFailure := create("https://recent-failure.example.com", "")
	fail(recentFailure, now.Add(-time.Minute), true)
	permanentFailure := create("https://gone.example.com", "")
	fail(permanentFailure, now.Add(-2*time.Hour), false)

	candidates, err := store.GetRefreshCandidates(ctx, RefreshCandidatesFilter{
		Now:              now,
		FailedRetryAfter: time.Hour,
		Limit:            50,
	})
	require.NoError(t, err)

	var ids []string
	for _, l := range candidates {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []string{pending.ID, stale.ID, oldFailure.ID}, ids)
	assert.NotContains(t, ids, social.ID)
	assert.Equal(t, pending.ID, candidates[0].ID, "never fetched links come first")

	marked, err := store.MarkExpiredPreviews(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	got, err := store.GetLinkByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PreviewStatusExpired, got.PreviewStatus)
	assert.True(t, got.HasPreviewMetadata(), "expiry keeps the data")

	got, err = store.GetLinkByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PreviewStatusSuccess, got.PreviewStatus)

	candidates, err = store.GetRefreshCandidates(ctx, RefreshCandidatesFilter{Now: now, FailedRetryAfter: time.Hour, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

// =============================================================================
// Test: ExcludePreview
// =============================================================================

func testExcludePreview(t *testing.T, store Store) {
	ctx := context.Background()
	now := baseTime.Add(48 * time.Hour)
	reason := "INVALID_URL: social links are excluded from previews"

	t.Run("excluded links leave the refresh queue", func(t *testing.T) {
		var social []*schema.Link
		for i := 0; i < 3; i++ {
			link, err := store.CreateLink(ctx, buildTestLink(fmt.Sprintf("https://twitter.com/someone-%d", i), ""))
			require.NoError(t, err)
			social = append(social, link)
		}
		other, err := store.CreateLink(ctx, buildTestLink("https://example.com/article", ""))
		require.NoError(t, err)
		require.True(t, commitSuccess(t, store, other.ID, baseTime))

		filter := RefreshCandidatesFilter{Now: now, FailedRetryAfter: time.Hour, Limit: 3}
		candidates, err := store.GetRefreshCandidates(ctx, filter)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		for _, l := range candidates {
			assert.NotEqual(t, other.ID, l.ID, "never fetched links fill the batch")
		}

		for _, link := range social {
			committed, err := store.ExcludePreview(ctx, ExcludePreviewInput{LinkID: link.ID, Reason: reason, At: now})
			require.NoError(t, err)
			assert.True(t, committed)
		}

		candidates, err = store.GetRefreshCandidates(ctx, filter)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, other.ID, candidates[0].ID)

		got, err := store.GetLinkByID(ctx, social[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatusFailed, got.PreviewStatus)
		assert.False(t, got.PreviewRetryable)
		require.NotNil(t, got.PreviewError)
		assert.Equal(t, reason, *got.PreviewError)
		assert.True(t, got.PreviewFetchedAt.Equal(now))
	})

	t.Run("stored metadata is dropped", func(t *testing.T) {
		link, err := store.CreateLink(ctx, buildTestLink("https://x.com/someone", ""))
		require.NoError(t, err)
		require.True(t, commitSuccess(t, store, link.ID, baseTime))

		committed, err := store.ExcludePreview(ctx, ExcludePreviewInput{LinkID: link.ID, Reason: reason, At: now})
		require.NoError(t, err)
		assert.True(t, committed)

		got, err := store.GetLinkByID(ctx, link.ID)
		require.NoError(t, err)
		assert.False(t, got.HasPreviewMetadata())
		assert.Nil(t, got.PreviewExpiresAt)
		assert.Nil(t, got.PreviewHash)
		assert.Equal(t, "rocket", *got.CustomIcon)
	})

	t.Run("missing link is not excluded", func(t *testing.T) {
		committed, err := store.ExcludePreview(ctx, ExcludePreviewInput{LinkID: uuid.NewString(), Reason: reason, At: now})
		require.NoError(t, err)
		assert.False(t, committed)
	})
}

// =============================================================================
// Test: KeyValueStore
// =============================================================================

func testKeyValueStore(t *testing.T, store Store) {
	ctx := context.Background()

	value, err := store.GetKeyValue(ctx, "ratelimit:github")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.SetKeyValue(ctx, "ratelimit:github", `{"remaining":10}`))
	require.NoError(t, store.SetKeyValue(ctx, "ratelimit:github", `{"remaining":9}`))

	value, err = store.GetKeyValue(ctx, "ratelimit:github")
	require.NoError(t, err)
	assert.Equal(t, `{"remaining":9}`, value)
}

func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"Links", testLinks},
		{"CommitPreviewSuccess", testCommitPreviewSuccess},
		{"CommitPreviewFailure", testCommitPreviewFailure},
		{"ExpiryAndRefreshCandidates", testExpiryAndRefreshCandidates},
		{"ExcludePreview", testExcludePreview},
		{"KeyValueStore", testKeyValueStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, initDB(t))
		})
	}
}
