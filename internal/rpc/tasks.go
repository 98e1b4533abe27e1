package rpc

import (
	"github.com/asyade/audio-gen-exp/internal/diffusion"
)

// Task is the idiomatic Go replacement for the source's
// CondaExecutorTask trait: a value identifying which worker procedure to
// invoke and carrying its own request payload via standard json.Marshal.
type Task interface {
	ProcedureID() string
}

// GetDiffusionModelTemplateTask asks the worker for a named model's
// option template.
type GetDiffusionModelTemplateTask struct {
	Model string `json:"model"`
}

func (GetDiffusionModelTemplateTask) ProcedureID() string { return "GetDiffusionModelTemplateTask" }

// RunDiffusionModelTemplateTask asks the worker to execute a filled-in
// template. The reserved options HF_API_KEY and OUTPUT_DIRECTORY are
// injected by NewRunDiffusionModelTemplateTask, not by the caller.
type RunDiffusionModelTemplateTask struct {
	Template diffusion.Template `json:"template"`
}

func (RunDiffusionModelTemplateTask) ProcedureID() string { return "RunDiffusionModelTemplateTask" }

// NewRunDiffusionModelTemplateTask injects the reserved template options
// the worker expects on every run, mirroring the original
// CondaExecutor.process_diffusion_model's insert of HF_API_KEY and
// OUTPUT_DIRECTORY before dispatch.
func NewRunDiffusionModelTemplateTask(tmpl diffusion.Template, hfAPIKey, outputDirectory string) RunDiffusionModelTemplateTask {
	out := tmpl.Clone()
	out[diffusion.ReservedHFAPIKey] = diffusion.StringOpt(hfAPIKey, true)
	out[diffusion.ReservedOutputDirectory] = diffusion.StringOpt(outputDirectory, true)
	return RunDiffusionModelTemplateTask{Template: out}
}

// RunDiffusionModelTemplateResult is the reply payload shape for
// RunDiffusionModelTemplateTask: either an external error or a list of
// produced asset paths.
type RunDiffusionModelTemplateResult struct {
	Error  *string  `json:"error,omitempty"`
	Assets []string `json:"assets,omitempty"`
}

// GetAvailableDiffusionModelTask lists the models the worker currently
// has available.
type GetAvailableDiffusionModelTask struct{}

func (GetAvailableDiffusionModelTask) ProcedureID() string { return "GetAvailableDiffusionModel" }
