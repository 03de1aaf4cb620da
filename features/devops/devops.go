// Package devops exposes a read-only view of the CI/CD board — build
// pipeline states and recent deployment events — as agent tools. Sources
// only answer questions; nothing in this package mutates the board.
package devops

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultDeployLimit is used when a caller does not bound a deployment
	// listing.
	DefaultDeployLimit = 5
	// MaxDeployLimit caps deployment listings regardless of what was asked
	// for.
	MaxDeployLimit = 20
)

// ErrUnknownPipeline reports a build status lookup for a pipeline the board
// has never seen. Unknown environments are not errors; they list as empty.
var ErrUnknownPipeline = errors.New("unknown pipeline")

type (
	// BuildStatus is the latest known outcome of a CI pipeline.
	BuildStatus struct {
		// Pipeline is the pipeline name as the CI system reports it.
		Pipeline string `json:"pipeline"`
		// State is the CI system's state word (for example "succeeded",
		// "failed" or "running"). It is passed through verbatim.
		State string `json:"state"`
		// Branch is the branch the build ran against.
		Branch string `json:"branch"`
		// Commit is the short revision the build ran at.
		Commit string `json:"commit"`
		// FinishedAt is when the build completed. Zero while still running.
		FinishedAt time.Time `json:"finished_at"`
	}

	// Deployment is a single rollout event in an environment.
	Deployment struct {
		// Environment is the target environment ("staging", "production").
		Environment string `json:"environment"`
		// Service is the deployed service name.
		Service string `json:"service"`
		// Version is the deployed artifact version.
		Version string `json:"version"`
		// State is the rollout state word, passed through verbatim.
		State string `json:"state"`
		// DeployedAt is when the rollout happened.
		DeployedAt time.Time `json:"deployed_at"`
	}

	// DeploymentList is the shape returned by the deployment listing tool.
	DeploymentList struct {
		Environment string       `json:"environment"`
		Count       int          `json:"count"`
		Deployments []Deployment `json:"deployments"`
	}

	// Source answers read-only questions about the board. Implementations
	// must return defensive copies and a non-nil empty slice when an
	// environment has no recorded deployments.
	Source interface {
		// BuildStatus reports the latest build of pipeline, or
		// ErrUnknownPipeline.
		BuildStatus(ctx context.Context, pipeline string) (*BuildStatus, error)
		// RecentDeployments lists the newest deployments in environment,
		// most recent first. Limit is normalized with ClampLimit.
		RecentDeployments(ctx context.Context, environment string, limit int) ([]Deployment, error)
	}
)

// ClampLimit normalizes a requested deployment listing size: non-positive
// values take the default, oversized ones are capped.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultDeployLimit
	}
	if limit > MaxDeployLimit {
		return MaxDeployLimit
	}
	return limit
}
