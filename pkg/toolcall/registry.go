package toolcall

import "fmt"

// Spec declares the argument schema for one supported operation.
type Spec struct {
	Name     string
	Required []string
	Optional []string
}

// Registry is the closed set of operations the orchestrator understands.
// Unknown names and missing required arguments are rejected at parse time,
// not when the call is dispatched.
type Registry struct {
	specs map[string]Spec
}

func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		r.specs[s.Name] = s
	}
	return r
}

// Validate checks an invocation against the registry.
func (r *Registry) Validate(inv Invocation) error {
	spec, ok := r.specs[inv.Name]
	if !ok {
		return &ParseError{Fragment: inv.Name, Reason: "unknown tool"}
	}

	allowed := make(map[string]bool, len(spec.Required)+len(spec.Optional))
	for _, p := range spec.Required {
		allowed[p] = true
	}
	for _, p := range spec.Optional {
		allowed[p] = true
	}

	for _, p := range spec.Required {
		if _, ok := inv.Arguments[p]; !ok {
			return &ParseError{
				Fragment: inv.Name,
				Reason:   fmt.Sprintf("missing required parameter %q", p),
			}
		}
	}
	for p := range inv.Arguments {
		if !allowed[p] {
			return &ParseError{
				Fragment: inv.Name,
				Reason:   fmt.Sprintf("unexpected parameter %q", p),
			}
		}
	}
	return nil
}
