// Package tool defines the uniform tool contract and the name-keyed
// registry the executor and agent loop consult. Concrete leaf tools live in
// internal/toolset; this package only knows about the erased
// types.ToolDescriptor shape.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/xln3/forgeagent/pkg/types"
)

// Registry is a name -> descriptor map built at startup. Lookups are O(1)
// and the registry is read-only after construction finishes.
type Registry struct {
	tools map[string]*types.ToolDescriptor
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*types.ToolDescriptor)}
}

// Register adds a descriptor, keyed by its Name. Registering the same name
// twice replaces the earlier descriptor.
func (r *Registry) Register(d *types.ToolDescriptor) {
	if _, exists := r.tools[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.tools[d.Name] = d
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (*types.ToolDescriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []*types.ToolDescriptor {
	out := make([]*types.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Filtered returns a new registry containing only the names in allowed,
// minus any name in disallowed. allowed == nil means "all registered
// names" (the "*" catalog entry from the agent-type descriptor).
func (r *Registry) Filtered(allowed, disallowed []string) *Registry {
	disallow := make(map[string]bool, len(disallowed))
	for _, n := range disallowed {
		disallow[n] = true
	}

	names := allowed
	if names == nil {
		names = r.Names()
	}

	out := NewRegistry()
	for _, n := range names {
		if disallow[n] {
			continue
		}
		if d, ok := r.tools[n]; ok {
			out.Register(d)
		}
	}
	return out
}

// EinoTools adapts every registered descriptor into an Eino InvokableTool,
// for providers whose wire dialect is driven through Eino's
// ToolCallingChatModel.
func (r *Registry) EinoTools() []einotool.BaseTool {
	out := make([]einotool.BaseTool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, &einoToolAdapter{descriptor: r.tools[name]})
	}
	return out
}

// einoToolAdapter lets a types.ToolDescriptor satisfy Eino's InvokableTool,
// so the provider layer can expose the registry to either wire dialect
// without the registry depending on Eino's richer tool type.
type einoToolAdapter struct {
	descriptor *types.ToolDescriptor
}

func (a *einoToolAdapter) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        a.descriptor.Name,
		Desc:        a.descriptor.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(schemaToParams(a.descriptor.Schema)),
	}, nil
}

func (a *einoToolAdapter) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	var input map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &input); err != nil {
		return "", err
	}

	events, err := a.descriptor.Call(ctx, &types.ToolContext{Cancel: ctx.Done()}, input)
	if err != nil {
		return "", err
	}

	var last types.ToolResult
	for ev := range events {
		if ev.Type == types.ToolEventResult {
			last = ev.Result
		}
	}
	if last.Err != nil {
		return "", last.Err
	}
	return a.descriptor.Render(last), nil
}

// schemaToParams converts a JSON-schema-shaped map into Eino's
// ParameterInfo map, the way the teacher's provider layer does for its own
// tool definitions.
func schemaToParams(sch map[string]any) map[string]*schema.ParameterInfo {
	props, _ := sch["properties"].(map[string]any)
	if props == nil {
		return nil
	}

	required := map[string]bool{}
	if reqList, ok := sch["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		typ := schema.String
		desc := ""
		if prop != nil {
			if t, ok := prop["type"].(string); ok {
				switch t {
				case "integer":
					typ = schema.Integer
				case "number":
					typ = schema.Number
				case "boolean":
					typ = schema.Boolean
				case "array":
					typ = schema.Array
				case "object":
					typ = schema.Object
				}
			}
			if d, ok := prop["description"].(string); ok {
				desc = d
			}
		}
		params[name] = &schema.ParameterInfo{Type: typ, Desc: desc, Required: required[name]}
	}
	return params
}
