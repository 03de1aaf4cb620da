package inmem

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimacampos/deskagent/features/devops"
)

func TestBuildStatusLookup(t *testing.T) {
	s := New()
	finished := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	s.SetBuild(devops.BuildStatus{
		Pipeline:   "Checkout-API",
		State:      "succeeded",
		Branch:     "main",
		Commit:     "4f1c2aa",
		FinishedAt: finished,
	})

	got, err := s.BuildStatus(context.Background(), "checkout-api")
	require.NoError(t, err)
	require.Equal(t, "Checkout-API", got.Pipeline)
	require.Equal(t, "succeeded", got.State)
	require.Equal(t, finished, got.FinishedAt)

	// Lookups are case-insensitive either way.
	got, err = s.BuildStatus(context.Background(), "  CHECKOUT-API ")
	require.NoError(t, err)
	require.Equal(t, "4f1c2aa", got.Commit)
}

func TestBuildStatusUnknownPipeline(t *testing.T) {
	s := New()
	_, err := s.BuildStatus(context.Background(), "ghost-pipeline")
	require.ErrorIs(t, err, devops.ErrUnknownPipeline)
}

func TestBuildStatusRequiresPipeline(t *testing.T) {
	s := New()
	_, err := s.BuildStatus(context.Background(), "   ")
	require.EqualError(t, err, "pipeline is required")
}

func TestBuildStatusReturnsCopies(t *testing.T) {
	s := New()
	s.SetBuild(devops.BuildStatus{Pipeline: "checkout-api", State: "succeeded"})

	got, err := s.BuildStatus(context.Background(), "checkout-api")
	require.NoError(t, err)
	got.State = "mangled"

	again, err := s.BuildStatus(context.Background(), "checkout-api")
	require.NoError(t, err)
	require.Equal(t, "succeeded", again.State)
}

func TestRecentDeploymentsOrderAndLimit(t *testing.T) {
	s := New()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.RecordDeployment(devops.Deployment{
			Environment: "Staging",
			Service:     "checkout-api",
			Version:     fmt.Sprintf("v1.%d", i),
			State:       "succeeded",
			DeployedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}

	got, err := s.RecentDeployments(context.Background(), "staging", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "v1.2", got[0].Version)
	require.Equal(t, "v1.0", got[2].Version)

	got, err = s.RecentDeployments(context.Background(), "staging", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "v1.2", got[0].Version)
}

func TestRecentDeploymentsDefaultAndCap(t *testing.T) {
	s := New()
	for i := 0; i < 25; i++ {
		s.RecordDeployment(devops.Deployment{
			Environment: "production",
			Service:     "checkout-api",
			Version:     fmt.Sprintf("v1.%d", i),
		})
	}

	got, err := s.RecentDeployments(context.Background(), "production", 0)
	require.NoError(t, err)
	require.Len(t, got, devops.DefaultDeployLimit)
	require.Equal(t, "v1.24", got[0].Version)

	got, err = s.RecentDeployments(context.Background(), "production", 50)
	require.NoError(t, err)
	require.Len(t, got, devops.MaxDeployLimit)
}

func TestRecentDeploymentsUnknownEnvironment(t *testing.T) {
	s := New()
	got, err := s.RecentDeployments(context.Background(), "qa", 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestRecentDeploymentsRequiresEnvironment(t *testing.T) {
	s := New()
	_, err := s.RecentDeployments(context.Background(), "", 5)
	require.EqualError(t, err, "environment is required")
}

func TestDemoBoardAnswersOutOfTheBox(t *testing.T) {
	s := Demo()

	build, err := s.BuildStatus(context.Background(), "checkout-api")
	require.NoError(t, err)
	require.Equal(t, "succeeded", build.State)

	running, err := s.BuildStatus(context.Background(), "identity-service")
	require.NoError(t, err)
	require.Equal(t, "running", running.State)
	require.True(t, running.FinishedAt.IsZero())

	deploys, err := s.RecentDeployments(context.Background(), "staging", 0)
	require.NoError(t, err)
	require.NotEmpty(t, deploys)
	require.Equal(t, "in_progress", deploys[0].State)
}

func TestReset(t *testing.T) {
	s := Demo()
	s.Reset()

	_, err := s.BuildStatus(context.Background(), "checkout-api")
	require.ErrorIs(t, err, devops.ErrUnknownPipeline)
	deploys, err := s.RecentDeployments(context.Background(), "staging", 0)
	require.NoError(t, err)
	require.Empty(t, deploys)
}
