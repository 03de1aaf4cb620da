// Command deskagent runs a console chat session against a support-desk
// assistant that files tickets and answers CI/CD questions through
// registered tools.
//
// The assistant reasons remotely; this host owns the tools. Each typed line
// becomes one turn: the host sends the line to the remote run service,
// drives the run until it finishes, executes any tool calls the run requests
// along the way, and prints the assistant's reply.
//
// # Configuration
//
// Settings resolve with the same precedence everywhere: command-line flag or
// profile value first, then the environment, then a hard failure for
// required settings before any remote call is attempted.
//
// Environment variables:
//
//	DESKAGENT_PROVIDER       - run service provider: azure or openai (default: azure)
//	DESKAGENT_ASSISTANT_ID   - reuse an existing assistant instead of creating one
//	AZURE_OPENAI_ENDPOINT    - Azure OpenAI resource endpoint
//	AZURE_OPENAI_KEY         - Azure OpenAI API key
//	AZURE_OPENAI_DEPLOYMENT  - model deployment for newly created assistants
//	AZURE_OPENAI_API_VERSION - Azure API version override (optional)
//	OPENAI_API_KEY           - OpenAI API key
//	OPENAI_BASE_URL          - OpenAI endpoint override (optional)
//	OPENAI_MODEL             - model for newly created assistants
//	MONGO_URI                - MongoDB connection URI (-tickets mongo)
//	MONGO_DATABASE           - MongoDB database name (-tickets mongo)
//	REDIS_ADDR               - Redis address (-board redis)
//	REDIS_PASSWORD           - Redis password (optional)
//
// A .env file in the working directory is loaded when present. A YAML
// profile (-profile deskagent.yaml) can set the assistant name, instructions
// and model plus the provider, backends, and poll interval.
//
// # Example
//
//	AZURE_OPENAI_ENDPOINT=https://acme.openai.azure.com \
//	AZURE_OPENAI_KEY=... AZURE_OPENAI_DEPLOYMENT=gpt-4o \
//	deskagent -tickets mongo -board redis
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"goa.design/clue/log"

	"github.com/jimacampos/deskagent/features/devops"
	azuresvc "github.com/jimacampos/deskagent/features/runsvc/azure"
	"github.com/jimacampos/deskagent/features/runsvc/middleware"
	openaisvc "github.com/jimacampos/deskagent/features/runsvc/openai"
	"github.com/jimacampos/deskagent/features/tickets"
	"github.com/jimacampos/deskagent/internal/config"
	"github.com/jimacampos/deskagent/runtime/agent/dispatch"
	"github.com/jimacampos/deskagent/runtime/agent/driver"
	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/telemetry"
	"github.com/jimacampos/deskagent/runtime/agent/tools"
	"github.com/jimacampos/deskagent/runtime/agent/transcript"
)

const (
	defaultProvider      = "azure"
	defaultBackend       = "inmem"
	defaultAssistantName = "deskagent"

	// rateBurst is the token bucket depth of the outbound rate limiter.
	rateBurst = 5

	defaultInstructions = "You are a support-desk assistant for an engineering team. " +
		"Use the registered tools to file and inspect support tickets and to answer " +
		"questions about build pipelines and deployments. Prefer tool results over " +
		"guessing; when a tool call fails, tell the user what went wrong."
)

// hostOptions carries the parsed command-line flags into run.
type hostOptions struct {
	profilePath  string
	provider     string
	assistantID  string
	tickets      string
	board        string
	pollInterval time.Duration
	rps          float64
}

func main() {
	var (
		profileF   = flag.String("profile", "", "Path to an optional YAML profile")
		providerF  = flag.String("provider", "", "Run service provider: azure or openai (default: DESKAGENT_PROVIDER or azure)")
		assistantF = flag.String("assistant-id", "", "Existing assistant id (default: DESKAGENT_ASSISTANT_ID; a new assistant is created when empty)")
		ticketsF   = flag.String("tickets", "", "Ticket store backend: inmem or mongo (default: inmem)")
		boardF     = flag.String("board", "", "CI/CD board backend: inmem or redis (default: inmem)")
		pollF      = flag.Duration("poll-interval", 0, "Run status poll interval (default: profile value or 1s)")
		rpsF       = flag.Float64("rps", 5, "Outbound requests per second to the run service (0 disables rate limiting)")
		dbgF       = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	// Setup logger.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	// A .env file is a development convenience; absence is the normal case.
	if err := godotenv.Load(); err != nil {
		log.Debugf(ctx, "no .env file loaded: %v", err)
	}

	err := run(ctx, hostOptions{
		profilePath:  *profileF,
		provider:     *providerF,
		assistantID:  *assistantF,
		tickets:      *ticketsF,
		board:        *boardF,
		pollInterval: *pollF,
		rps:          *rpsF,
	})
	if err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context, opts hostOptions) error {
	var prof config.Profile
	if opts.profilePath != "" {
		p, err := config.LoadProfile(opts.profilePath)
		if err != nil {
			return err
		}
		prof = p
		log.Debugf(ctx, "profile loaded from %s", opts.profilePath)
	}

	provider := pick(opts.provider, prof.Provider, os.Getenv("DESKAGENT_PROVIDER"), defaultProvider)

	pollInterval := opts.pollInterval
	if pollInterval <= 0 {
		d, err := prof.PollIntervalOr(driver.DefaultPollInterval)
		if err != nil {
			return err
		}
		pollInterval = d
	}

	// Business backends.
	store, closeStore, err := buildTicketStore(ctx, pick(opts.tickets, prof.Tickets, defaultBackend))
	if err != nil {
		return err
	}
	defer closeStore()

	board, closeBoard, err := buildBoard(ctx, pick(opts.board, prof.Board, defaultBackend))
	if err != nil {
		return err
	}
	defer closeBoard()

	// Tool registry.
	reg := tools.NewRegistry()
	if err := reg.RegisterAll(tickets.Tools(store)...); err != nil {
		return fmt.Errorf("register ticket tools: %w", err)
	}
	if err := reg.RegisterAll(devops.Tools(board)...); err != nil {
		return fmt.Errorf("register board tools: %w", err)
	}
	log.Print(ctx, log.KV{K: "tools", V: strings.Join(reg.Names(), ", ")})

	// Run service: provider client, assistant, rate limit.
	svc, assistantID, err := buildRunService(ctx, provider, prof, reg, config.Lookup(opts.assistantID, "DESKAGENT_ASSISTANT_ID"))
	if err != nil {
		return err
	}
	svc = middleware.RateLimit(opts.rps, rateBurst)(svc)

	// Orchestration core.
	var (
		logger  = telemetry.NewClueLogger()
		metrics = telemetry.NewClueMetrics()
		tracer  = telemetry.NewClueTracer()
	)
	dispatcher := dispatch.New(reg,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
		dispatch.WithTracer(tracer),
	)
	drv, err := driver.New(svc, dispatcher, assistantID,
		driver.WithPollInterval(pollInterval),
		driver.WithLogger(logger),
		driver.WithMetrics(metrics),
		driver.WithTracer(tracer),
	)
	if err != nil {
		return err
	}
	reader, err := transcript.NewReader(svc, transcript.WithLogger(logger))
	if err != nil {
		return err
	}

	threadID, err := svc.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	log.Printf(ctx, "thread %s ready (provider=%s)", threadID, provider)

	return repl(ctx, drv, reader, threadID)
}

// buildRunService builds the provider client, resolves the assistant id
// (creating the assistant when none is configured), and returns the service
// the driver polls.
func buildRunService(ctx context.Context, provider string, prof config.Profile, reg *tools.Registry, assistantID string) (runs.Service, string, error) {
	name := pick(prof.Assistant.Name, defaultAssistantName)
	instructions := pick(prof.Assistant.Instructions, defaultInstructions)

	switch provider {
	case "azure":
		endpoint, err := config.Require("", "AZURE_OPENAI_ENDPOINT", "Azure OpenAI endpoint")
		if err != nil {
			return nil, "", err
		}
		key, err := config.Require("", "AZURE_OPENAI_KEY", "Azure OpenAI API key")
		if err != nil {
			return nil, "", err
		}
		client, err := azuresvc.NewFromConfig(azuresvc.Config{
			Endpoint:   endpoint,
			APIKey:     key,
			APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		})
		if err != nil {
			return nil, "", fmt.Errorf("build azure client: %w", err)
		}
		if assistantID == "" {
			deployment, err := config.Require(prof.Assistant.Deployment, "AZURE_OPENAI_DEPLOYMENT", "assistant model deployment")
			if err != nil {
				return nil, "", err
			}
			assistantID, err = client.EnsureAssistant(ctx, azuresvc.Profile{
				Name:         name,
				Instructions: instructions,
				Deployment:   deployment,
			}, reg.Definitions())
			if err != nil {
				return nil, "", fmt.Errorf("ensure assistant: %w", err)
			}
			log.Printf(ctx, "assistant %s created (set DESKAGENT_ASSISTANT_ID to reuse it)", assistantID)
		}
		return client, assistantID, nil

	case "openai":
		key, err := config.Require("", "OPENAI_API_KEY", "OpenAI API key")
		if err != nil {
			return nil, "", err
		}
		client, err := openaisvc.NewFromConfig(openaisvc.Config{
			APIKey:  key,
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		})
		if err != nil {
			return nil, "", fmt.Errorf("build openai client: %w", err)
		}
		if assistantID == "" {
			model, err := config.Require(prof.Assistant.Deployment, "OPENAI_MODEL", "assistant model")
			if err != nil {
				return nil, "", err
			}
			assistantID, err = client.EnsureAssistant(ctx, openaisvc.Profile{
				Name:         name,
				Instructions: instructions,
				Model:        model,
			}, reg.Definitions())
			if err != nil {
				return nil, "", fmt.Errorf("ensure assistant: %w", err)
			}
			log.Printf(ctx, "assistant %s created (set DESKAGENT_ASSISTANT_ID to reuse it)", assistantID)
		}
		return client, assistantID, nil

	default:
		return nil, "", fmt.Errorf("invalid provider %q (valid providers: azure, openai)", provider)
	}
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
