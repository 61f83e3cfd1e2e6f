package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/graph/parsers"
	"github.com/boardpilot/itemagent/internal/agent/graph/prompts"
	"github.com/boardpilot/itemagent/internal/agent/model"
	"github.com/boardpilot/itemagent/internal/catalog"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// Node names for the item generation state machine.
const (
	NodeIngest         = "Ingest"
	NodePrepareContext = "PrepareContext"
	NodeGenerate       = "Generate"
	NodeFieldTools     = "FieldTools"
	NodeValidate       = "Validate"
	NodeRetry          = "Retry"
	NodeComplete       = "Complete"
	NodeSuspend        = "Suspend"
	NodeAbandon        = "Abandon"
)

// NewIngestNode creates the entry node. A fresh run seeds graph state from the
// input and the flow's field catalog. A resumed run restores the checkpointed
// state and rebuilds the transcript from the user's answer, so the next pass
// regenerates with compact context instead of the full pre-suspend history.
func NewIngestNode(operation string, provider catalog.Provider, checkpoints model.CheckpointRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (*schema.Message, error) {
		userMsg := schema.UserMessage(input.Query)

		if input.Resume {
			checkpoint, err := checkpoints.Load(ctx, input.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("load checkpoint for thread %s: %w", input.ThreadID, err)
			}
			if checkpoint.State == nil {
				return nil, fmt.Errorf("checkpoint for thread %s has no state", input.ThreadID)
			}
			err = compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
				*state = *checkpoint.State
				state.Suspend = nil
				state.Resuming = true
				state.Transcript = []*schema.Message{userMsg}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("restore state: %w", err)
			}
			logx.Debug().
				Str("thread_id", input.ThreadID).
				Str("operation", checkpoint.Operation).
				Msg("Resuming suspended run from checkpoint")
			return userMsg, nil
		}

		catalogFields, err := provider.Fields(ctx, input.Flow)
		if err != nil {
			return nil, fmt.Errorf("load field catalog for flow %q: %w", input.Flow, err)
		}
		err = compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			state.ThreadID = input.ThreadID
			state.Flow = input.Flow
			state.Operation = operation
			state.CurrentUserID = input.CurrentUserID
			state.AdditionalContext = input.AdditionalContext
			state.Catalog = catalogFields
			state.Transcript = []*schema.Message{userMsg}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("seed state: %w", err)
		}
		logx.Debug().
			Str("thread_id", input.ThreadID).
			Str("flow", input.Flow).
			Int("field_count", len(catalogFields)).
			Msg("Starting fresh run")
		return userMsg, nil
	})
}

// NewIngestCondition routes a resumed run straight into the retry loop so the
// restored validation errors turn into corrective feedback before the next
// generation pass. Fresh runs go to context preparation.
func NewIngestCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, _ *schema.Message) (string, error) {
		var resuming bool
		compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			resuming = state.Resuming
			return nil
		})

		if resuming {
			logx.Debug().Msg("Routing resumed run to Retry")
			return NodeRetry, nil
		}
		return NodePrepareContext, nil
	}
}

// NewPrepareContextNode synthesizes the leading system message from the static
// instruction prompt plus the rendered field catalog. A transcript that already
// starts with a system message passes through unchanged, which makes the node
// safe to revisit after a retry.
func NewPrepareContextNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) ([]*schema.Message, error) {
		var transcript []*schema.Message
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			if len(state.Transcript) == 0 || state.Transcript[0] == nil || state.Transcript[0].Role != schema.System {
				systemPrompt, err := prompts.RenderGenerationSystem(ctx, state.Operation)
				if err != nil {
					return fmt.Errorf("render generation prompt: %w", err)
				}
				if fieldContext := prompts.BuildFieldContext(state.Catalog, state.AdditionalContext); fieldContext != "" {
					systemPrompt = systemPrompt + "\n\n" + fieldContext
				}
				state.Transcript = append([]*schema.Message{schema.SystemMessage(systemPrompt)}, state.Transcript...)
			}
			transcript = append(transcript, state.Transcript...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return transcript, nil
	})
}

// NewGeneratePreHandler appends freshly produced tool results to the transcript
// and resets the payload buffer before the next model call.
func NewGeneratePreHandler() func(context.Context, []*schema.Message, *model.ConversationState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.ConversationState) ([]*schema.Message, error) {
		for _, msg := range in {
			if msg != nil && msg.Role == schema.Tool {
				state.Transcript = append(state.Transcript, msg)
			}
		}
		state.LastPayload = ""

		logx.Debug().Int("transcript_len", len(state.Transcript)).Msg("AI thinking...")

		return state.Transcript, nil
	}
}

// NewGenerateNode invokes the generation model with the accumulated transcript.
// Model-call failures are recorded as validation errors and consumed by the
// retry loop rather than aborting the run.
func NewGenerateNode(cm *ChatModels) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in []*schema.Message) (*schema.Message, error) {
		out, err := cm.Generator.Generate(ctx, in)
		if err != nil {
			logx.Error().Err(err).Msg("Generation call failed")
			perr := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
				state.AddValidationError(fmt.Sprintf("Generation error: %v", err))
				return nil
			})
			if perr != nil {
				return nil, perr
			}
			return nil, nil
		}
		return out, nil
	})
}

// NewGeneratePostHandler normalizes tool call ids, computes usage cost and
// records the model response in graph state.
func NewGeneratePostHandler(modelName string) func(context.Context, *schema.Message, *model.ConversationState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ConversationState) (*schema.Message, error) {
		if out == nil {
			return out, nil
		}

		if model.CostEnabled() && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = map[string]any{
				"currency":          "USD",
				"model":             modelName,
				"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
				"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
				"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
				"input_cost":        inC,
				"output_cost":       outC,
				"total_cost":        totalC,
			}
			logx.Debug().
				Str("thread_id", state.ThreadID).
				Str("node", NodeGenerate).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")

			// Accumulate only total cost into state
			state.TotalCostUSD += totalC
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
		}

		// Normalize tool calls: Gemini may omit tool_call IDs.
		if len(out.ToolCalls) > 0 {
			for i := range out.ToolCalls {
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					out.ToolCalls[i].ID = state.NextToolCallID()
				}
			}
			state.ToolIterations++
			logx.Debug().
				Int("tool_count", len(out.ToolCalls)).
				Int("tool_iterations", state.ToolIterations).
				Msg("Model requested field tools")
		}

		state.LastPayload = out.Content
		state.Transcript = append(state.Transcript, out)
		return out, nil
	}
}

// NewGenerateCondition routes the model response: tool requests run the field
// tools unless the iteration budget is spent, textual payloads go to
// validation, anything else enters the retry loop.
func NewGenerateCondition(maxToolIterations int) func(context.Context, *schema.Message) (string, error) {
	maxToolIterations = normalizeMaxToolIterations(maxToolIterations)
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var iterations int
		var payload string
		compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			iterations = state.ToolIterations
			payload = state.LastPayload
			return nil
		})

		if input != nil && len(input.ToolCalls) > 0 {
			if iterations > maxToolIterations {
				logx.Warn().
					Int("tool_iterations", iterations).
					Int("max_tool_iterations", maxToolIterations).
					Msg("Tool iteration budget exceeded - routing to Retry")
				return NodeRetry, nil
			}
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to FieldTools")
			return NodeFieldTools, nil
		}

		if payload != "" {
			return NodeValidate, nil
		}

		logx.Debug().Msg("No payload generated - routing to Retry")
		return NodeRetry, nil
	}
}

// NewValidateNode parses the generated payload, merges the extracted values
// into the pending set and checks required-field coverage. Missing required
// fields raise the suspend record instead of an error.
func NewValidateNode(origin string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			if strings.TrimSpace(state.LastPayload) == "" {
				state.AddValidationError("no payload generated")
				return nil
			}

			values, err := parsers.ParseFieldValues(state.LastPayload)
			if err != nil {
				logx.Debug().Err(err).Str("thread_id", state.ThreadID).Msg("Payload rejected")
				state.AddValidationError(err.Error())
				return nil
			}
			state.MergeValues(values)

			missing := state.MissingRequired()
			if len(missing) == 0 {
				return nil
			}

			state.Suspend = &model.SuspendRecord{
				Question:      missingFieldsQuestion(missing),
				MissingFields: missing,
				Origin:        origin,
			}
			state.RetryFromScratch = true
			state.AddValidationError(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
			logx.Debug().
				Str("thread_id", state.ThreadID).
				Strs("missing_fields", missing).
				Msg("Suspending run for missing required fields")
			return nil
		})
		if err != nil {
			return nil, err
		}
		return msg, nil
	})
}

// NewValidateCondition routes a clean pass to the terminal action, a raised
// suspend record to Suspend, and anything else into the retry loop. A run that
// just resumed keeps its rebuild flag until one retry pass clears it, so the
// first post-resume validation never completes directly.
func NewValidateCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, _ *schema.Message) (string, error) {
		var suspended, clean bool
		compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			suspended = state.Suspend != nil
			clean = len(state.ValidationErrors) == 0 && !state.RetryFromScratch
			return nil
		})

		if suspended {
			return NodeSuspend, nil
		}
		if clean {
			return NodeComplete, nil
		}
		return NodeRetry, nil
	}
}

// NewRetryNode increments the retry counter and prepares the transcript for
// the next pass: validation failures get corrective feedback, a resumed run
// clears its rebuild flag, and a spent tool budget drops accumulated tool
// chatter. Per-attempt scratch state is always cleared on the way out.
func NewRetryNode(maxRetries, maxToolIterations int) *compose.Lambda {
	maxRetries = normalizeMaxRetries(maxRetries)
	maxToolIterations = normalizeMaxToolIterations(maxToolIterations)
	return compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			state.RetryCount++

			switch {
			case len(state.ValidationErrors) > 0 && state.RetryCount <= maxRetries:
				feedback := retryFeedback(state.ValidationErrors)
				state.Transcript = append(state.Transcript, schema.UserMessage(feedback))
				logx.Debug().
					Str("thread_id", state.ThreadID).
					Int("retry_count", state.RetryCount).
					Strs("validation_errors", state.ValidationErrors).
					Msg("Retrying with corrective feedback")
			case state.RetryFromScratch:
				state.RetryFromScratch = false
				logx.Debug().
					Str("thread_id", state.ThreadID).
					Int("retry_count", state.RetryCount).
					Msg("Cleared transcript rebuild flag")
			case state.ToolIterations > maxToolIterations && state.RetryCount <= maxRetries:
				if i := firstNonSystem(state.Transcript); i >= 0 {
					state.Transcript = []*schema.Message{state.Transcript[i]}
				}
				logx.Debug().
					Str("thread_id", state.ThreadID).
					Int("retry_count", state.RetryCount).
					Msg("Dropped tool chatter from transcript")
			}

			state.ClearAttempt()
			return nil
		})
		if err != nil {
			return nil, err
		}
		return msg, nil
	})
}

// NewRetryCondition terminates the run once the retry budget is spent,
// otherwise loops back to context preparation.
func NewRetryCondition(maxRetries int) func(context.Context, *schema.Message) (string, error) {
	maxRetries = normalizeMaxRetries(maxRetries)
	return func(ctx context.Context, _ *schema.Message) (string, error) {
		var retries int
		compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			retries = state.RetryCount
			return nil
		})

		if retries > maxRetries {
			logx.Warn().
				Int("retry_count", retries).
				Int("max_retries", maxRetries).
				Msg("Retry budget exhausted - abandoning run")
			return NodeAbandon, nil
		}
		return NodePrepareContext, nil
	}
}

// NewCompleteNode reports terminal success with the merged field values and
// drops the thread checkpoint.
func NewCompleteNode(result string, checkpoints model.CheckpointRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) (*model.Outcome, error) {
		var out *model.Outcome
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			out = &model.Outcome{
				Status:     model.OutcomeCompleted,
				ThreadID:   state.ThreadID,
				Result:     result,
				Values:     state.PendingValues,
				RetryCount: state.RetryCount,
				CostUSD:    state.TotalCostUSD,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if err := checkpoints.Delete(ctx, out.ThreadID); err != nil {
			logx.Warn().Str("thread_id", out.ThreadID).Err(err).Msg("Failed to drop checkpoint after completion")
		}
		logx.Debug().
			Str("thread_id", out.ThreadID).
			Int("value_count", len(out.Values)).
			Int("retry_count", out.RetryCount).
			Msg("Run completed")
		return out, nil
	})
}

// NewSuspendNode persists the run state for a later resume and reports the
// clarification prompt to the caller. A run cannot suspend without durable
// state, so checkpoint failures abort instead of degrading.
func NewSuspendNode(checkpoints model.CheckpointRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) (*model.Outcome, error) {
		var out *model.Outcome
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			if state.Suspend == nil {
				return fmt.Errorf("suspend node reached without a suspend record")
			}
			checkpoint := &model.Checkpoint{
				ThreadID:  state.ThreadID,
				Flow:      state.Flow,
				Operation: state.Operation,
				State:     state,
			}
			if err := checkpoints.Save(ctx, checkpoint); err != nil {
				return fmt.Errorf("save checkpoint for thread %s: %w", state.ThreadID, err)
			}
			out = &model.Outcome{
				Status:        model.OutcomeSuspended,
				ThreadID:      state.ThreadID,
				Question:      state.Suspend.Question,
				MissingFields: state.Suspend.MissingFields,
				RetryCount:    state.RetryCount,
				CostUSD:       state.TotalCostUSD,
			}
			logx.Debug().
				Str("thread_id", state.ThreadID).
				Str("question", state.Suspend.Question).
				Msg("Run suspended awaiting user input")
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// NewAbandonNode reports retry exhaustion as an explicit failure and drops the
// thread checkpoint.
func NewAbandonNode(checkpoints model.CheckpointRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) (*model.Outcome, error) {
		var out *model.Outcome
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.ConversationState) error {
			out = &model.Outcome{
				Status:     model.OutcomeFailed,
				ThreadID:   state.ThreadID,
				Errors:     []string{fmt.Sprintf("generation abandoned after %d attempts", state.RetryCount)},
				RetryCount: state.RetryCount,
				CostUSD:    state.TotalCostUSD,
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if err := checkpoints.Delete(ctx, out.ThreadID); err != nil {
			logx.Warn().Str("thread_id", out.ThreadID).Err(err).Msg("Failed to drop checkpoint after abandoning run")
		}
		logx.Warn().
			Str("thread_id", out.ThreadID).
			Int("retry_count", out.RetryCount).
			Msg("Generation abandoned after exhausting retries")
		return out, nil
	})
}
