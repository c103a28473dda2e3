package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ReplyTargetArg is the argument that identifies the email a reply-oriented
// tool operates on. Tools that set RequiresReplyTarget expect the caller to
// fill this argument in when the model omits it.
const ReplyTargetArg = "reply_to_message_id"

var (
	// ErrNotFound is returned when a tool name is not registered.
	ErrNotFound = errors.New("tool not found")

	// ErrInvalidArguments is returned when arguments fail schema validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrDuplicate is returned when a tool name is registered twice.
	ErrDuplicate = errors.New("tool already registered")
)

// Handler executes a tool with schema-validated arguments and returns the
// text that is folded back into the conversation as the tool result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool describes a single callable tool.
type Tool struct {
	// Name is the identifier the model uses to invoke the tool.
	Name string

	// Description tells the model what the tool does and when to use it.
	Description string

	// Schema is the JSON Schema for the tool's arguments.
	Schema json.RawMessage

	// Handler executes the tool.
	Handler Handler

	// RequiresReplyTarget marks tools that act on a previously fetched
	// email. The agent loop fills in ReplyTargetArg from its cache when
	// the model omits it, and refuses the call when no email has been
	// fetched this turn.
	RequiresReplyTarget bool

	// CachesResult marks tools whose handler records the fetched email
	// so later reply tools can address it.
	CachesResult bool
}

type registered struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry holds the set of tools available to the agent.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registered
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registered),
	}
}

// Register adds a tool to the registry. It fails if the name is empty,
// already taken, the handler is nil, or the schema does not compile.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s: handler must not be nil", t.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(t.Schema))
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.Name)
	}

	r.tools[t.Name] = &registered{tool: t, schema: schema}
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register but panics on error. Intended for static wiring
// at startup where a failure is a programming bug.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return reg.tool, true
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates args against the tool's schema and runs its handler.
// It returns ErrNotFound for unknown names and ErrInvalidArguments when the
// arguments do not conform to the schema.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := reg.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}
	if !result.Valid() {
		return "", fmt.Errorf("%w: %s: %s", ErrInvalidArguments, name, formatValidationErrors(result))
	}

	return reg.tool.Handler(ctx, args)
}

func formatValidationErrors(result *gojsonschema.Result) string {
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return strings.Join(msgs, "; ")
}
