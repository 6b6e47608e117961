package fake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/tracker"
	"github.com/stagegate/stagegate/internal/tracker/fake"
)

func TestFakeClient(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	c, err := fake.NewClient(fake.ClientConfig{Issues: []tracker.Issue{
		{Key: "X-1", Title: "One"},
		{Key: "X-2", Title: "Two"},
	}})
	require.NoError(err)

	issues, err := c.AssignedIssues(ctx)
	require.NoError(err)
	assert.Len(t, issues, 2)

	issue, err := c.Issue(ctx, "X-2")
	require.NoError(err)
	assert.Equal(t, "Two", issue.Title)

	_, err = c.Issue(ctx, "X-3")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFakeClientDefaults(t *testing.T) {
	require := require.New(t)

	c, err := fake.NewClient(fake.ClientConfig{})
	require.NoError(err)

	issues, err := c.AssignedIssues(context.Background())
	require.NoError(err)
	require.NotEmpty(issues)
}
