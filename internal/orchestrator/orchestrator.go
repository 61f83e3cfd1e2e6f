// Package orchestrator ties the classifiers and item machines together into
// one message-in, outcome-out entry point per thread.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/boardpilot/itemagent/internal/agent/classify"
	"github.com/boardpilot/itemagent/internal/agent/graph"
	"github.com/boardpilot/itemagent/internal/agent/graph/conversations"
	"github.com/boardpilot/itemagent/internal/agent/model"
	errx "github.com/boardpilot/itemagent/internal/core/error"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// FlowPicker selects the flow a fresh request should run against.
type FlowPicker interface {
	Pick(ctx context.Context, threadID, message string) (string, error)
}

// StaticFlowPicker always picks the same flow.
type StaticFlowPicker struct {
	Flow string
}

func (p StaticFlowPicker) Pick(_ context.Context, _, _ string) (string, error) {
	if p.Flow == "" {
		return "", fmt.Errorf("no flow configured")
	}
	return p.Flow, nil
}

// CrudRouter picks the specialist for a fresh request.
type CrudRouter interface {
	Classify(ctx context.Context, message string) (string, error)
}

// ResumeRouter relates a new message to the question a suspended run asked.
type ResumeRouter interface {
	Classify(ctx context.Context, previous, message string) (string, error)
}

// Config wires an Orchestrator.
type Config struct {
	Creator       graph.Runner
	Updater       graph.Runner
	Crud          CrudRouter
	Resume        ResumeRouter
	Checkpoints   model.CheckpointRepository
	Threads       *conversations.ThreadManager
	Flows         FlowPicker
	CurrentUserID string
}

// Orchestrator routes each user message: suspended threads go through the
// resume classifier, fresh ones through the CRUD supervisor, and the selected
// item machine runs the rest.
type Orchestrator struct {
	creator     graph.Runner
	updater     graph.Runner
	crud        CrudRouter
	resume      ResumeRouter
	checkpoints model.CheckpointRepository
	threads     *conversations.ThreadManager
	flows       FlowPicker
	userID      string
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Creator == nil {
		return nil, fmt.Errorf("creator machine is nil")
	}
	if cfg.Updater == nil {
		return nil, fmt.Errorf("updater machine is nil")
	}
	if cfg.Crud == nil {
		return nil, fmt.Errorf("crud classifier is nil")
	}
	if cfg.Resume == nil {
		return nil, fmt.Errorf("resume classifier is nil")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint repository is nil")
	}
	if cfg.Threads == nil {
		return nil, fmt.Errorf("thread manager is nil")
	}
	if cfg.Flows == nil {
		return nil, fmt.Errorf("flow picker is nil")
	}
	return &Orchestrator{
		creator:     cfg.Creator,
		updater:     cfg.Updater,
		crud:        cfg.Crud,
		resume:      cfg.Resume,
		checkpoints: cfg.Checkpoints,
		threads:     cfg.Threads,
		flows:       cfg.Flows,
		userID:      cfg.CurrentUserID,
	}, nil
}

// Handle processes one user message on a thread and returns the outcome the
// caller should show. Suspended threads are resumed, re-asked, or restarted
// depending on how the new message relates to the pending question.
func (o *Orchestrator) Handle(ctx context.Context, threadID, message string) (*model.Outcome, error) {
	// Snapshot recent turns before recording the current one, so the machine
	// does not see the live query twice.
	recentContext, err := o.threads.BuildRecentContext(ctx, threadID)
	if err != nil {
		logx.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to load recent thread context")
		recentContext = ""
	}
	if err := o.threads.RecordUserMessage(ctx, threadID, message); err != nil {
		logx.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to record user message")
	}

	out, err := o.route(ctx, threadID, message, recentContext)
	if err != nil {
		return nil, err
	}

	if reply := replyFor(out); reply != "" {
		if err := o.threads.RecordAssistantMessage(ctx, threadID, reply); err != nil {
			logx.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to record assistant message")
		}
	}
	return out, nil
}

func (o *Orchestrator) route(ctx context.Context, threadID, message, recentContext string) (*model.Outcome, error) {
	cp, err := o.checkpoints.Load(ctx, threadID)
	switch {
	case err == nil:
		return o.handleSuspended(ctx, threadID, message, recentContext, cp)
	case errx.NotFound(err):
		return o.dispatch(ctx, threadID, message, recentContext)
	default:
		return nil, fmt.Errorf("load checkpoint for thread %s: %w", threadID, err)
	}
}

// handleSuspended deals with a thread that has a pending question.
func (o *Orchestrator) handleSuspended(ctx context.Context, threadID, message, recentContext string, cp *model.Checkpoint) (*model.Outcome, error) {
	if cp.State == nil || cp.State.Suspend == nil {
		logx.Warn().Str("thread_id", threadID).Msg("Checkpoint has no suspend record - starting fresh")
		if err := o.checkpoints.Delete(ctx, threadID); err != nil {
			logx.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to drop unusable checkpoint")
		}
		return o.dispatch(ctx, threadID, message, recentContext)
	}
	pending := cp.State.Suspend

	relation, err := o.resume.Classify(ctx, pending.Question, message)
	if err != nil {
		return nil, err
	}

	switch relation {
	case classify.RelationAnswer:
		machine, err := o.machineFor(pending.Origin)
		if err != nil {
			return nil, err
		}
		logx.Debug().
			Str("thread_id", threadID).
			Str("origin", pending.Origin).
			Msg("Resuming suspended thread with user's answer")
		return machine.Resume(ctx, threadID, message)

	case classify.RelationContinuation:
		// The question stands. Re-ask it and keep the checkpoint untouched.
		logx.Debug().Str("thread_id", threadID).Msg("Message continues the thread without answering - re-asking")
		return &model.Outcome{
			Status:        model.OutcomeSuspended,
			ThreadID:      threadID,
			Question:      pending.Question,
			MissingFields: pending.MissingFields,
			RetryCount:    cp.State.RetryCount,
		}, nil

	case classify.RelationNewConversation:
		logx.Debug().Str("thread_id", threadID).Msg("Message starts a new conversation - dropping suspended run")
		if err := o.checkpoints.Delete(ctx, threadID); err != nil {
			logx.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to drop superseded checkpoint")
		}
		return o.dispatch(ctx, threadID, message, recentContext)

	default:
		return nil, fmt.Errorf("unexpected resume relation %q", relation)
	}
}

// dispatch classifies a fresh request and runs the selected machine.
func (o *Orchestrator) dispatch(ctx context.Context, threadID, message, recentContext string) (*model.Outcome, error) {
	flow, err := o.flows.Pick(ctx, threadID, message)
	if err != nil {
		return nil, fmt.Errorf("pick flow for thread %s: %w", threadID, err)
	}

	specialist, err := o.crud.Classify(ctx, message)
	if err != nil {
		return nil, err
	}
	machine, err := o.machineFor(specialist)
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("thread_id", threadID).
		Str("flow", flow).
		Str("specialist", specialist).
		Msg("Dispatching user request")

	return machine.Execute(ctx, model.QueryInput{
		ThreadID:          threadID,
		Query:             message,
		Flow:              flow,
		CurrentUserID:     o.userID,
		AdditionalContext: recentContext,
	})
}

// machineFor resolves a specialist id to its machine. The specialist set is
// closed; classifiers and suspend records may only name these two.
func (o *Orchestrator) machineFor(specialist string) (graph.Runner, error) {
	switch specialist {
	case model.SpecialistCreator:
		return o.creator, nil
	case model.SpecialistUpdater:
		return o.updater, nil
	default:
		return nil, fmt.Errorf("no machine registered for specialist %q", specialist)
	}
}

// replyFor picks the user-visible line of an outcome for the thread history.
func replyFor(out *model.Outcome) string {
	if out == nil {
		return ""
	}
	switch out.Status {
	case model.OutcomeSuspended:
		return out.Question
	case model.OutcomeCompleted:
		return out.Result
	case model.OutcomeFailed:
		if len(out.Errors) > 0 {
			return out.Errors[0]
		}
	}
	return ""
}
