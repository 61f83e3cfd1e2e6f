package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/boardpilot/itemagent/internal/agent/classify"
	"github.com/boardpilot/itemagent/internal/agent/graph"
	"github.com/boardpilot/itemagent/internal/agent/graph/conversations"
	"github.com/boardpilot/itemagent/internal/agent/graph/nodes"
	"github.com/boardpilot/itemagent/internal/agent/model"
	"github.com/boardpilot/itemagent/internal/catalog"
	"github.com/boardpilot/itemagent/internal/core"
	"github.com/boardpilot/itemagent/internal/fields"
	"github.com/boardpilot/itemagent/internal/orchestrator"
	"github.com/boardpilot/itemagent/internal/repo"
	logx "github.com/boardpilot/itemagent/pkg/logger"
	pkgredis "github.com/boardpilot/itemagent/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Core
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Generation model.GenerationModelConfig
	Classifier model.ClassifierModelConfig
	Thread     model.ThreadConfig
	Values     fields.LookupConfig

	// Board wiring
	Flow          string `envconfig:"BOARD_FLOW" default:"Leave management"`
	CurrentUserID string `envconfig:"CURRENT_USER_ID" default:"demo-user"`
}

func main() {
	fmt.Println("Starting board item agent...")
	ctx := context.Background()
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Thread.TTL)
	if err != nil {
		log.Fatalf("Invalid THREAD_TTL '%s': %v", envCfg.Thread.TTL, err)
	}

	// ====================================================
	// Shared infrastructure for both machines
	checkpoints := repo.NewRedisCheckpointRepository(rdb, ttl)
	threads := conversations.NewThreadManager(repo.NewRedisConversationRepository(rdb, ttl), envCfg.Thread)

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:     envCfg.APIKey,
		BaseURL:    envCfg.BaseURL,
		Generation: &envCfg.Generation,
		Classifier: &envCfg.Classifier,
	})
	if err != nil {
		log.Fatalf("Failed to create chat models: %v", err)
	}

	provider := catalog.NewDefaultProvider()
	values := fields.NewLookupClient(envCfg.Values)

	creator, err := graph.BuildRunner(ctx, &graph.GraphConfig{
		ChatModels:  cms,
		Operation:   model.OperationCreate,
		Generation:  &envCfg.Generation,
		Catalog:     provider,
		Checkpoints: checkpoints,
		Values:      values,
	})
	if err != nil {
		log.Fatalf("Failed to build create machine: %v", err)
	}

	updater, err := graph.BuildRunner(ctx, &graph.GraphConfig{
		ChatModels:  cms,
		Operation:   model.OperationUpdate,
		Generation:  &envCfg.Generation,
		Catalog:     provider,
		Checkpoints: checkpoints,
		Values:      values,
	})
	if err != nil {
		log.Fatalf("Failed to build update machine: %v", err)
	}

	crud, err := classify.NewCrudClassifier(cms.Classifier)
	if err != nil {
		log.Fatalf("Failed to create CRUD classifier: %v", err)
	}
	resume, err := classify.NewResumeClassifier(cms.Classifier)
	if err != nil {
		log.Fatalf("Failed to create resume classifier: %v", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Creator:       creator,
		Updater:       updater,
		Crud:          crud,
		Resume:        resume,
		Checkpoints:   checkpoints,
		Threads:       threads,
		Flows:         orchestrator.StaticFlowPicker{Flow: envCfg.Flow},
		CurrentUserID: envCfg.CurrentUserID,
	})
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	testTurns := []struct {
		description string
		message     string
	}{
		{
			description: "Leave request with dates",
			message:     "planning to take leave apply for it, from aug 8 2025 to aug 10 2025 for vacation",
		},
		{
			description: "Follow-up detail",
			message:     "the summary is annual vacation trip",
		},
	}

	threadID := "leave-thread-001"

	for i, turn := range testTurns {
		fmt.Printf("\n🚀 Turn %d: %s\n", i+1, turn.description)
		fmt.Printf("Message: %q\n", turn.message)
		fmt.Println("Processing...")

		out, err := orch.Handle(ctx, threadID, turn.message)
		if err != nil {
			log.Fatalf("Failed to handle turn %d: %v", i+1, err)
		}

		switch out.Status {
		case model.OutcomeCompleted:
			fmt.Printf("✅ Completed: %s\n", out.Result)
			fmt.Printf("   Values: %v\n", out.Values)
		case model.OutcomeSuspended:
			fmt.Printf("⏸️ Waiting for input: %s\n", out.Question)
			fmt.Printf("   Missing fields: %v\n", out.MissingFields)
		case model.OutcomeFailed:
			fmt.Printf("❌ Failed after %d attempts: %v\n", out.RetryCount, out.Errors)
		}
		if out.CostUSD > 0 {
			fmt.Printf("   LLM cost: $%.6f\n", out.CostUSD)
		}
		fmt.Println("─────────────────────────────────────────────")

		// add slight delay between turns for readability
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("\n🎉 Demo finished")
}
