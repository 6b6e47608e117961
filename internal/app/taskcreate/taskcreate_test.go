package taskcreate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate/internal/app/taskcreate"
	"github.com/stagegate/stagegate/internal/catalog"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage/memory"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    taskcreate.ServiceConfig
		expErr bool
	}{
		"Missing repository returns error": {
			cfg:    taskcreate.ServiceConfig{},
			expErr: true,
		},
		"Valid config works": {
			cfg: taskcreate.ServiceConfig{Repository: newRepo(t)},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := taskcreate.NewService(test.cfg)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	return repo
}

func TestCreate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	repo := newRepo(t)
	for i, tpl := range catalog.DefaultTemplates() {
		tpl.ID = fmt.Sprintf("tpl-%d", i)
		require.NoError(repo.CreateStageTemplate(ctx, tpl))
	}

	svc, err := taskcreate.NewService(taskcreate.ServiceConfig{Repository: repo})
	require.NoError(err)

	task, err := svc.Create(ctx, taskcreate.CreateOptions{
		Title:       "Add login endpoint",
		Description: "POST /login with rate limiting.",
	})
	require.NoError(err)
	assert.Equal(model.TaskStatusPending, task.Status)
	assert.Empty(task.CurrentStageID)

	// The default stage list is every mandatory template in pipeline order.
	stages, err := repo.ListTaskStages(ctx, task.ID)
	require.NoError(err)

	var names []string
	for _, ts := range stages {
		tpl, err := repo.GetStageTemplate(ctx, ts.StageID)
		require.NoError(err)
		names = append(names, tpl.Name)
	}
	assert.Equal([]string{
		catalog.StageResearch, catalog.StagePlanning, catalog.StageImplementation,
		catalog.StageCodeReview, catalog.StageMerge,
	}, names)
}

func TestCreateWithoutTitle(t *testing.T) {
	svc, err := taskcreate.NewService(taskcreate.ServiceConfig{Repository: newRepo(t)})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), taskcreate.CreateOptions{})
	assert.Error(t, err)
}
