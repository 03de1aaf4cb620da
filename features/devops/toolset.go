package devops

import (
	"context"

	"github.com/jimacampos/deskagent/runtime/agent/tools"
)

// Tool names are stable contract keys shared with the assistant
// configuration. Renaming one is a breaking change.
const (
	ToolBuildStatus       = "get_build_status"
	ToolRecentDeployments = "list_recent_deployments"
)

// Tools binds the board tool definitions to source. The returned definitions
// are ready to register.
func Tools(source Source) []tools.ToolDefinition {
	return []tools.ToolDefinition{
		{
			Name:        ToolBuildStatus,
			Description: "Report the latest build state of a CI pipeline.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"pipeline": {Type: tools.TypeString, Description: "Pipeline name, for example checkout-api."},
				},
				Required: []string{"pipeline"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				return source.BuildStatus(ctx, args.String("pipeline"))
			},
		},
		{
			Name:        ToolRecentDeployments,
			Description: "List the most recent deployments in an environment, newest first.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"environment": {Type: tools.TypeString, Description: "Environment name, for example staging or production."},
					"limit":       {Type: tools.TypeInteger, Description: "Maximum deployments to return. Defaults to 5."},
				},
				Required: []string{"environment"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				environment := args.String("environment")
				deploys, err := source.RecentDeployments(ctx, environment, args.IntOr("limit", DefaultDeployLimit))
				if err != nil {
					return nil, err
				}
				return &DeploymentList{Environment: environment, Count: len(deploys), Deployments: deploys}, nil
			},
		},
	}
}
