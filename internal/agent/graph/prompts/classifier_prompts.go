package prompts

import (
	"context"
	_ "embed"
)

//go:embed template/supervisor_prompt.txt
var supervisorSystemPrompt string

//go:embed template/resume_prompt.txt
var resumeSystemPrompt string

// RenderSupervisorSystem renders the CRUD supervisor prompt and triggers
// prompt callbacks.
func RenderSupervisorSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, "supervisor", supervisorSystemPrompt)
}

// RenderResumeSystem renders the resume classifier prompt and triggers prompt
// callbacks.
func RenderResumeSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, "resume", resumeSystemPrompt)
}
