package review

import (
	"context"
	"net/http"
	"testing"

	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoard(t *testing.T) (*Board, *testutil.FakeBackend) {
	t.Helper()
	backend := testutil.NewFakeBackend(t)
	backend.PutReview(models.ReviewEntry{ID: "r1", ProjectName: "one", Review: &models.Review{Status: models.ReviewStatusPending}, Status: models.ProjectStatusIdle})
	backend.PutReview(models.ReviewEntry{ID: "r2", ProjectName: "two", Review: &models.Review{Status: models.ReviewStatusApproved}, Status: models.ProjectStatusDone})
	backend.PutReview(models.ReviewEntry{ID: "r3", ProjectName: "three", Review: &models.Review{Status: models.ReviewStatusRejected}, Status: models.ProjectStatusActive})

	client, err := joinapi.New(backend.URL())
	require.NoError(t, err)
	return NewBoard(client, nil), backend
}

func TestBoard_ListQueryParameter(t *testing.T) {
	b, backend := newBoard(t)
	ctx := context.Background()

	approved, err := b.List(ctx, models.ReviewStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "r2", approved[0].ID)

	all, err := b.List(ctx, models.ReviewStatusAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	calls := backend.Calls("/api/admin/join-requests")
	require.Len(t, calls, 2)
	assert.Equal(t, "status=approved", calls[0].Query)
	assert.Equal(t, "", calls[1].Query)
}

func TestBoard_DefaultFilter(t *testing.T) {
	b, _ := newBoard(t)
	assert.Equal(t, models.ReviewStatusPending, b.Filter())

	entries, err := b.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].ID)
}

func TestBoard_SetStatusReloads(t *testing.T) {
	b, backend := newBoard(t)
	ctx := context.Background()

	_, err := b.List(ctx, models.ReviewStatusPending)
	require.NoError(t, err)

	entries, err := b.SetStatus(ctx, "r1", models.ReviewStatusApproved)
	require.NoError(t, err)
	assert.Empty(t, entries, "r1 left the pending filter")

	lists := backend.Calls("/api/admin/join-requests")
	require.Len(t, lists, 2)
	assert.Equal(t, "status=pending", lists[1].Query)
}

func TestBoard_SetStatusReloadsAfterFailure(t *testing.T) {
	b, backend := newBoard(t)
	ctx := context.Background()

	_, err := b.List(ctx, models.ReviewStatusAll)
	require.NoError(t, err)

	backend.Fail("/api/admin/join-requests/:id", http.StatusForbidden, "not allowed")
	entries, err := b.SetStatus(ctx, "r1", models.ReviewStatusRejected)
	require.Error(t, err)

	status, _ := joinapi.StatusCode(err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Len(t, entries, 3)
	assert.Len(t, backend.Calls("/api/admin/join-requests"), 2, "reloaded despite failure")
}

func TestBoard_ListFailureKeepsEntries(t *testing.T) {
	b, backend := newBoard(t)
	ctx := context.Background()

	_, err := b.List(ctx, models.ReviewStatusAll)
	require.NoError(t, err)

	backend.Fail("/api/admin/join-requests", http.StatusBadGateway, "")
	_, err = b.List(ctx, models.ReviewStatusApproved)
	require.Error(t, err)
	assert.Len(t, b.Entries(), 3)
	assert.Equal(t, models.ReviewStatusApproved, b.Filter())
}

func TestCanSet(t *testing.T) {
	tests := []struct {
		name   string
		entry  models.ReviewEntry
		target models.ReviewStatus
		want   bool
	}{
		{name: "pending to approved", entry: models.ReviewEntry{Review: &models.Review{Status: models.ReviewStatusPending}}, target: models.ReviewStatusApproved, want: true},
		{name: "approved to approved", entry: models.ReviewEntry{Review: &models.Review{Status: models.ReviewStatusApproved}}, target: models.ReviewStatusApproved, want: false},
		{name: "rejected to approved", entry: models.ReviewEntry{Review: &models.Review{Status: models.ReviewStatusRejected}}, target: models.ReviewStatusApproved, want: true},
		{name: "no review object", entry: models.ReviewEntry{}, target: models.ReviewStatusRejected, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanSet(tt.entry, tt.target))
		})
	}
}

func TestBoard_Result(t *testing.T) {
	b, backend := newBoard(t)

	d, err := b.Result(context.Background(), models.ReviewEntry{ID: "r2", ProjectName: "two"})
	require.NoError(t, err)
	assert.Equal(t, "two_결합결과.csv", d.FileName)
	assert.Equal(t, "project,id\nr2,1\n", string(d.Body))
	assert.Len(t, backend.Calls("/api/admin/join-requests/:id/result"), 1)
}
