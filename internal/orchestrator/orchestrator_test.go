package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardpilot/itemagent/internal/agent/classify"
	"github.com/boardpilot/itemagent/internal/agent/graph/conversations"
	"github.com/boardpilot/itemagent/internal/agent/model"
	errx "github.com/boardpilot/itemagent/internal/core/error"
	"github.com/boardpilot/itemagent/internal/repo"
)

type fakeRunner struct {
	executed []model.QueryInput
	resumed  []string
	outcome  *model.Outcome
	err      error
}

func (f *fakeRunner) Execute(_ context.Context, in model.QueryInput) (*model.Outcome, error) {
	f.executed = append(f.executed, in)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	out.ThreadID = in.ThreadID
	return &out, nil
}

func (f *fakeRunner) Resume(_ context.Context, threadID, answer string) (*model.Outcome, error) {
	f.resumed = append(f.resumed, answer)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	out.ThreadID = threadID
	return &out, nil
}

type fakeCrud struct {
	specialist string
	err        error
	got        []string
}

func (f *fakeCrud) Classify(_ context.Context, message string) (string, error) {
	f.got = append(f.got, message)
	if f.err != nil {
		return "", f.err
	}
	return f.specialist, nil
}

type fakeResume struct {
	relation    string
	err         error
	gotPrevious string
	gotMessage  string
}

func (f *fakeResume) Classify(_ context.Context, previous, message string) (string, error) {
	f.gotPrevious = previous
	f.gotMessage = message
	if f.err != nil {
		return "", f.err
	}
	return f.relation, nil
}

func completed() *model.Outcome {
	return &model.Outcome{Status: model.OutcomeCompleted, Result: "item successfully created"}
}

type testEnv struct {
	orch        *Orchestrator
	creator     *fakeRunner
	updater     *fakeRunner
	crud        *fakeCrud
	resume      *fakeResume
	checkpoints *repo.MemoryCheckpointRepository
	threads     *repo.MemoryConversationRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		creator:     &fakeRunner{outcome: completed()},
		updater:     &fakeRunner{outcome: completed()},
		crud:        &fakeCrud{specialist: model.SpecialistCreator},
		resume:      &fakeResume{relation: classify.RelationAnswer},
		checkpoints: repo.NewMemoryCheckpointRepository(),
		threads:     repo.NewMemoryConversationRepository(),
	}

	threadCfg := model.ThreadConfig{}
	threadCfg.History.MaxTurns = 5

	orch, err := New(Config{
		Creator:       env.creator,
		Updater:       env.updater,
		Crud:          env.crud,
		Resume:        env.resume,
		Checkpoints:   env.checkpoints,
		Threads:       conversations.NewThreadManager(env.threads, threadCfg),
		Flows:         StaticFlowPicker{Flow: "Leave management"},
		CurrentUserID: "user-1",
	})
	require.NoError(t, err)
	env.orch = orch
	return env
}

func suspendedCheckpoint(threadID, question string) *model.Checkpoint {
	return &model.Checkpoint{
		ThreadID:  threadID,
		Flow:      "Leave management",
		Operation: model.OperationCreate,
		State: &model.ConversationState{
			ThreadID:      threadID,
			PendingValues: map[string]any{"Summary": "Vacation leave"},
			Suspend: &model.SuspendRecord{
				Question:      question,
				MissingFields: []string{"Start_Date"},
				Origin:        model.SpecialistCreator,
			},
		},
	}
}

func TestHandleFreshDispatch(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.orch.Handle(context.Background(), "t-1", "apply for leave next week")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, out.Status)
	assert.Equal(t, "t-1", out.ThreadID)

	require.Len(t, env.creator.executed, 1)
	in := env.creator.executed[0]
	assert.Equal(t, "t-1", in.ThreadID)
	assert.Equal(t, "apply for leave next week", in.Query)
	assert.Equal(t, "Leave management", in.Flow)
	assert.Equal(t, "user-1", in.CurrentUserID)
	assert.Empty(t, in.AdditionalContext)
	assert.Empty(t, env.updater.executed)

	// Both the user turn and the reply land in the thread history.
	n, err := env.threads.GetMessageCount(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHandleRoutesUpdateMachine(t *testing.T) {
	env := newTestEnv(t)
	env.crud.specialist = model.SpecialistUpdater

	_, err := env.orch.Handle(context.Background(), "t-2", "change the leave dates on my item")
	require.NoError(t, err)

	assert.Empty(t, env.creator.executed)
	require.Len(t, env.updater.executed, 1)
}

func TestHandleUnknownSpecialistFails(t *testing.T) {
	env := newTestEnv(t)
	env.crud.specialist = "item_deleter"

	_, err := env.orch.Handle(context.Background(), "t-3", "remove my item")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no machine registered")
}

func TestHandleClassifierFailureIsHard(t *testing.T) {
	env := newTestEnv(t)
	env.crud.err = fmt.Errorf("classification failed")

	_, err := env.orch.Handle(context.Background(), "t-4", "apply for leave")
	require.Error(t, err)
	assert.Empty(t, env.creator.executed)
	assert.Empty(t, env.updater.executed)
}

func TestHandleSuspendedAnswerResumes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	question := "Please provide values for the missing required fields: Start_Date"
	require.NoError(t, env.checkpoints.Save(ctx, suspendedCheckpoint("t-5", question)))

	out, err := env.orch.Handle(ctx, "t-5", "from aug 8 to aug 10")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, out.Status)
	assert.Equal(t, question, env.resume.gotPrevious)
	assert.Equal(t, "from aug 8 to aug 10", env.resume.gotMessage)
	assert.Equal(t, []string{"from aug 8 to aug 10"}, env.creator.resumed)

	// The supervisor is bypassed for answers.
	assert.Empty(t, env.crud.got)
	assert.Empty(t, env.creator.executed)
}

func TestHandleSuspendedContinuationReasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	question := "Please provide values for the missing required fields: Start_Date"
	require.NoError(t, env.checkpoints.Save(ctx, suspendedCheckpoint("t-6", question)))
	env.resume.relation = classify.RelationContinuation

	out, err := env.orch.Handle(ctx, "t-6", "why do you need that?")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuspended, out.Status)
	assert.Equal(t, question, out.Question)
	assert.Equal(t, []string{"Start_Date"}, out.MissingFields)
	assert.Empty(t, env.creator.resumed)
	assert.Empty(t, env.creator.executed)

	// The pending run survives for the next message.
	_, err = env.checkpoints.Load(ctx, "t-6")
	assert.NoError(t, err)
}

func TestHandleSuspendedNewConversationStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.checkpoints.Save(ctx, suspendedCheckpoint("t-7", "Please provide the start date")))
	env.resume.relation = classify.RelationNewConversation

	out, err := env.orch.Handle(ctx, "t-7", "actually, file a sick leave for tomorrow instead")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, out.Status)
	assert.Empty(t, env.creator.resumed)
	require.Len(t, env.creator.executed, 1)

	_, err = env.checkpoints.Load(ctx, "t-7")
	assert.True(t, errx.NotFound(err))
}

func TestHandleResumeClassifierFailureIsHard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.checkpoints.Save(ctx, suspendedCheckpoint("t-8", "Please provide the start date")))
	env.resume.err = fmt.Errorf("classification failed")

	_, err := env.orch.Handle(ctx, "t-8", "hm")
	require.Error(t, err)
	assert.Empty(t, env.creator.resumed)
	assert.Empty(t, env.creator.executed)
}

func TestHandleCorruptCheckpointFallsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.checkpoints.Save(ctx, &model.Checkpoint{ThreadID: "t-9", Operation: model.OperationCreate}))

	out, err := env.orch.Handle(ctx, "t-9", "apply for leave")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, out.Status)
	require.Len(t, env.creator.executed, 1)
	_, err = env.checkpoints.Load(ctx, "t-9")
	assert.True(t, errx.NotFound(err))
}

func TestHandleCarriesRecentContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orch.Handle(ctx, "t-10", "apply for leave")
	require.NoError(t, err)
	_, err = env.orch.Handle(ctx, "t-10", "make it two weeks")
	require.NoError(t, err)

	require.Len(t, env.creator.executed, 2)
	assert.Empty(t, env.creator.executed[0].AdditionalContext)

	second := env.creator.executed[1].AdditionalContext
	assert.Contains(t, second, "<conversation_context>")
	assert.Contains(t, second, "UserMessage(apply for leave)")
	assert.Contains(t, second, "AssistantMessage(item successfully created)")
	assert.NotContains(t, second, "make it two weeks")
}

func TestNewValidatesConfig(t *testing.T) {
	env := newTestEnv(t)

	threadCfg := model.ThreadConfig{}
	threadCfg.History.MaxTurns = 5

	valid := func() Config {
		return Config{
			Creator:     env.creator,
			Updater:     env.updater,
			Crud:        env.crud,
			Resume:      env.resume,
			Checkpoints: env.checkpoints,
			Threads:     conversations.NewThreadManager(env.threads, threadCfg),
			Flows:       StaticFlowPicker{Flow: "Leave management"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil creator", func(c *Config) { c.Creator = nil }},
		{"nil updater", func(c *Config) { c.Updater = nil }},
		{"nil crud", func(c *Config) { c.Crud = nil }},
		{"nil resume", func(c *Config) { c.Resume = nil }},
		{"nil checkpoints", func(c *Config) { c.Checkpoints = nil }},
		{"nil threads", func(c *Config) { c.Threads = nil }},
		{"nil flows", func(c *Config) { c.Flows = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestStaticFlowPicker(t *testing.T) {
	flow, err := StaticFlowPicker{Flow: "Leave management"}.Pick(context.Background(), "t", "msg")
	require.NoError(t, err)
	assert.Equal(t, "Leave management", flow)

	_, err = StaticFlowPicker{}.Pick(context.Background(), "t", "msg")
	assert.Error(t, err)
}
