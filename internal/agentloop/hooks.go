package agentloop

import (
	"time"

	"github.com/xln3/forgeagent/internal/toolexec"
	"github.com/xln3/forgeagent/pkg/types"
)

// Hooks is the dispatch-point set named in spec §4.5. Every field is
// optional; a nil hook is simply skipped. Run never blocks waiting on a
// hook's side effects beyond the call itself, so a slow hook slows the loop
// but never deadlocks it.
type Hooks struct {
	// OnQueryStart fires once, before the first step.
	OnQueryStart func()

	// OnLLMRequest fires immediately before each provider call.
	OnLLMRequest func(step int, req *providerRequestSnapshot)

	// OnLLMResponse fires immediately after, with the step's duration.
	OnLLMResponse func(step int, resp *types.Message, duration time.Duration, err error)

	// OnToolStart/Progress/Complete/Error fire around each tool entry in a
	// turn's tool-use batch.
	OnToolStart    func(toolUseID, name string, input map[string]any)
	OnToolProgress func(toolUseID string, ev types.ToolEvent)
	OnToolComplete func(toolUseID string, outcome toolexec.Outcome)
	OnToolError    func(toolUseID string, outcome toolexec.Outcome)

	// OnQueryEnd fires once, on any termination path (including abort).
	OnQueryEnd func(result *Result)

	// OnAbort fires when the cancel token trips mid-run, before OnQueryEnd.
	OnAbort func()
}

// providerRequestSnapshot is the subset of a provider.CompletionRequest a
// hook might want to observe, without forcing agentloop's hook signature to
// depend on internal/provider's request type directly.
type providerRequestSnapshot struct {
	ProviderID string
	Model      string
	Messages   int // len(req.Messages) at call time
}

func (h *Hooks) queryStart() {
	if h != nil && h.OnQueryStart != nil {
		h.OnQueryStart()
	}
}

func (h *Hooks) llmRequest(step int, providerID, model string, nmsgs int) {
	if h != nil && h.OnLLMRequest != nil {
		h.OnLLMRequest(step, &providerRequestSnapshot{ProviderID: providerID, Model: model, Messages: nmsgs})
	}
}

func (h *Hooks) llmResponse(step int, resp *types.Message, d time.Duration, err error) {
	if h != nil && h.OnLLMResponse != nil {
		h.OnLLMResponse(step, resp, d, err)
	}
}

func (h *Hooks) toolStart(id, name string, input map[string]any) {
	if h != nil && h.OnToolStart != nil {
		h.OnToolStart(id, name, input)
	}
}

func (h *Hooks) toolProgress(id string, ev types.ToolEvent) {
	if h != nil && h.OnToolProgress != nil {
		h.OnToolProgress(id, ev)
	}
}

func (h *Hooks) toolComplete(id string, out toolexec.Outcome) {
	if h == nil {
		return
	}
	if out.IsError && h.OnToolError != nil {
		h.OnToolError(id, out)
		return
	}
	if h.OnToolComplete != nil {
		h.OnToolComplete(id, out)
	}
}

func (h *Hooks) queryEnd(result *Result) {
	if h != nil && h.OnQueryEnd != nil {
		h.OnQueryEnd(result)
	}
}

func (h *Hooks) abort() {
	if h != nil && h.OnAbort != nil {
		h.OnAbort()
	}
}
