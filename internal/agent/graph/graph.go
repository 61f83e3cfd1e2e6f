package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/boardpilot/itemagent/internal/agent/graph/nodes"
	"github.com/boardpilot/itemagent/internal/agent/graph/observers"
	"github.com/boardpilot/itemagent/internal/agent/graph/tools"
	"github.com/boardpilot/itemagent/internal/agent/model"
	"github.com/boardpilot/itemagent/internal/catalog"
	"github.com/boardpilot/itemagent/internal/fields"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// Limits applied to tool arguments before execution.
const (
	maxFieldIDsPerCall = 50
	maxSearchRunes     = 200
)

// Runner executes one item machine. Execute starts a fresh run under a thread
// id; Resume continues a suspended run with the user's answer.
type Runner interface {
	Execute(ctx context.Context, in model.QueryInput) (*model.Outcome, error)
	Resume(ctx context.Context, threadID, answer string) (*model.Outcome, error)
}

// GraphConfig holds all configuration needed to build the machine graph
type GraphConfig struct {
	ChatModels  *nodes.ChatModels
	Operation   string
	Generation  *model.GenerationModelConfig
	Catalog     catalog.Provider
	Checkpoints model.CheckpointRepository
	Values      *fields.LookupClient
}

// GraphBuilder handles the construction of the item generation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.Outcome]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.Outcome]
}

func (r *graphRunner) Execute(ctx context.Context, in model.QueryInput) (*model.Outcome, error) {
	in.Resume = false
	return r.invoke(ctx, in)
}

func (r *graphRunner) Resume(ctx context.Context, threadID, answer string) (*model.Outcome, error) {
	return r.invoke(ctx, model.QueryInput{
		ThreadID: threadID,
		Query:    answer,
		Resume:   true,
	})
}

func (r *graphRunner) invoke(ctx context.Context, in model.QueryInput) (*model.Outcome, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuildRunner compiles the machine graph and wraps it in a Runner.
func BuildRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Str("operation", config.Operation).Msg("Item machine built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled item generation graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.Outcome], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Generator == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Operation != model.OperationCreate && config.Operation != model.OperationUpdate {
		return nil, fmt.Errorf("unknown operation %q", config.Operation)
	}
	if config.Generation == nil {
		return nil, fmt.Errorf("generation config is nil")
	}
	if config.Catalog == nil {
		return nil, fmt.Errorf("catalog provider is nil")
	}
	if config.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint repository is nil")
	}
	if config.Values == nil {
		return nil, fmt.Errorf("value lookup client is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.Outcome](
			compose.WithGenLocalState(func(ctx context.Context) *model.ConversationState {
				return &model.ConversationState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools configures the field tools and binds them to the generation model
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	fieldTools := tools.GetFieldTools(tools.Deps{
		// Tools run inside the graph, so the catalog and current user come
		// from the run's local state.
		Source: func(ctx context.Context) ([]catalog.Field, string, error) {
			var catalogFields []catalog.Field
			var currentUser string
			err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
				catalogFields = state.Catalog
				currentUser = state.CurrentUserID
				return nil
			})
			if err != nil {
				return nil, "", err
			}
			return catalogFields, currentUser, nil
		},
		Values: b.config.Values,
	})

	toolInfos, err := tools.GetToolInfos(ctx, fieldTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.ChatModels.BindFieldTools(toolInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to generation model")
		return fmt.Errorf("failed to bind tools to generation model: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               fieldTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			// Gracefully handle hallucinated or malformed tool calls (e.g., empty name)
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			// Return a compact, structured message the model can use to proceed
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			// Best-effort sanitize; never fail hard here
			var m map[string]any
			if err := json.Unmarshal([]byte(arguments), &m); err != nil {
				// keep original if not JSON
				return arguments, nil
			}

			switch name {
			case tools.ToolGetFieldDetails:
				// field_ids: list of strings (required)
				if v, ok := m["field_ids"]; ok {
					if list, ok := v.([]any); ok && len(list) > maxFieldIDsPerCall {
						m["field_ids"] = list[:maxFieldIDsPerCall]
					}
				}
			case tools.ToolGetFieldValues:
				// field_id: string (required)
				if v, ok := m["field_id"]; ok {
					switch vv := v.(type) {
					case string:
						m["field_id"] = strings.TrimSpace(vv)
					default:
						// coerce non-string to string
						m["field_id"] = strings.TrimSpace(fmt.Sprint(v))
					}
				}
				// search_string: string (optional)
				if v, ok := m["search_string"]; ok {
					switch vv := v.(type) {
					case string:
						if r := []rune(vv); len(r) > maxSearchRunes {
							m["search_string"] = string(r[:maxSearchRunes])
						}
					default:
						delete(m, "search_string")
					}
				}
			}

			out, err := json.Marshal(m)
			if err != nil {
				// fallback to original
				return arguments, nil
			}
			return string(out), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	b.graph.AddToolsNode(nodes.NodeFieldTools, toolsNode)

	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeIngest,
		nodes.NewIngestNode(b.config.Operation, b.config.Catalog, b.config.Checkpoints),
	)

	b.graph.AddLambdaNode(nodes.NodePrepareContext,
		nodes.NewPrepareContextNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeGenerate,
		nodes.NewGenerateNode(b.config.ChatModels),
		compose.WithStatePreHandler(nodes.NewGeneratePreHandler()),
		compose.WithStatePostHandler(nodes.NewGeneratePostHandler(b.config.ChatModels.GeneratorModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeValidate,
		nodes.NewValidateNode(operationOrigin(b.config.Operation)),
	)

	b.graph.AddLambdaNode(nodes.NodeRetry,
		nodes.NewRetryNode(b.config.Generation.MaxRetries, b.config.Generation.MaxToolIterations),
	)

	b.graph.AddLambdaNode(nodes.NodeComplete,
		nodes.NewCompleteNode(operationResult(b.config.Operation), b.config.Checkpoints),
	)

	b.graph.AddLambdaNode(nodes.NodeSuspend,
		nodes.NewSuspendNode(b.config.Checkpoints),
	)

	b.graph.AddLambdaNode(nodes.NodeAbandon,
		nodes.NewAbandonNode(b.config.Checkpoints),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeIngest},
		{nodes.NodePrepareContext, nodes.NodeGenerate},
		{nodes.NodeFieldTools, nodes.NodeGenerate},
		{nodes.NodeComplete, compose.END},
		{nodes.NodeSuspend, compose.END},
		{nodes.NodeAbandon, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	ingestBranch := compose.NewGraphBranch(
		nodes.NewIngestCondition(),
		map[string]bool{
			nodes.NodePrepareContext: true,
			nodes.NodeRetry:          true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIngest, ingestBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding ingest branch")
		return fmt.Errorf("error adding ingest branch: %w", err)
	}

	generateBranch := compose.NewGraphBranch(
		nodes.NewGenerateCondition(b.config.Generation.MaxToolIterations),
		map[string]bool{
			nodes.NodeFieldTools: true,
			nodes.NodeValidate:   true,
			nodes.NodeRetry:      true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeGenerate, generateBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding generate branch")
		return fmt.Errorf("error adding generate branch: %w", err)
	}

	validateBranch := compose.NewGraphBranch(
		nodes.NewValidateCondition(),
		map[string]bool{
			nodes.NodeComplete: true,
			nodes.NodeSuspend:  true,
			nodes.NodeRetry:    true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeValidate, validateBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding validate branch")
		return fmt.Errorf("error adding validate branch: %w", err)
	}

	retryBranch := compose.NewGraphBranch(
		nodes.NewRetryCondition(b.config.Generation.MaxRetries),
		map[string]bool{
			nodes.NodePrepareContext: true,
			nodes.NodeAbandon:        true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRetry, retryBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding retry branch")
		return fmt.Errorf("error adding retry branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.Outcome], error) {
	maxRetries := b.config.Generation.MaxRetries
	if maxRetries <= 0 {
		maxRetries = nodes.DefaultMaxRetries
	}
	maxToolIterations := b.config.Generation.MaxToolIterations
	if maxToolIterations <= 0 {
		maxToolIterations = nodes.DefaultMaxToolIterations
	}

	// Limit total run steps: every retry attempt may walk the full tool loop
	maxSteps := 10 + (maxRetries+1)*(2*maxToolIterations+5)
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// operationOrigin names the specialist recorded in suspend records, so the
// orchestrator knows which machine to resume later.
func operationOrigin(operation string) string {
	if operation == model.OperationUpdate {
		return model.SpecialistUpdater
	}
	return model.SpecialistCreator
}

// operationResult is the completion message reported by the terminal node.
func operationResult(operation string) string {
	if operation == model.OperationUpdate {
		return "item successfully updated"
	}
	return "item successfully created"
}
