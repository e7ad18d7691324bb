package rules

import "fmt"

// TemplateSource looks up named templates.
type TemplateSource interface {
	HandlerTemplate(name string) ([]StateHandler, bool)
	OperationTemplate(name string) ([]OperationDef, bool)
}

// HandlerTemplate implements TemplateSource.
func (t TemplateSet) HandlerTemplate(name string) ([]StateHandler, bool) {
	hs, ok := t.Handlers[name]
	return hs, ok
}

// OperationTemplate implements TemplateSource.
func (t TemplateSet) OperationTemplate(name string) ([]OperationDef, bool) {
	ops, ok := t.Operations[name]
	return ops, ok
}

// chainSource consults sources in order; the first hit wins.
type chainSource []TemplateSource

// ChainSources combines template sources. Earlier sources shadow later ones.
func ChainSources(sources ...TemplateSource) TemplateSource {
	out := make(chainSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c chainSource) HandlerTemplate(name string) ([]StateHandler, bool) {
	for _, s := range c {
		if hs, ok := s.HandlerTemplate(name); ok {
			return hs, true
		}
	}
	return nil, false
}

func (c chainSource) OperationTemplate(name string) ([]OperationDef, bool) {
	for _, s := range c {
		if ops, ok := s.OperationTemplate(name); ok {
			return ops, true
		}
	}
	return nil, false
}

type templateRef struct {
	kind TemplateKind
	name string
}

func (r templateRef) String() string {
	return string(r.kind) + ":" + r.name
}

// resolver expands templates for one top-level Resolve call. stack holds
// the templates currently being expanded, innermost last.
type resolver struct {
	src    TemplateSource
	stack  []templateRef
	active map[templateRef]struct{}
}

// Resolve returns a copy of scene with every template reference expanded.
//
// Expansion is depth-first: a template's own references are expanded
// before it is spliced in. The input scene is not modified.
//
// Parameters:
//   - scene: the scene to resolve
//   - src: template lookup; nil means no templates are available
//
// Returns:
//   - Scene: the resolved scene, free of template references
//   - error: *TemplateNotFoundError, *CircularReferenceError, or an
//     ErrInvalidHandler / ErrInvalidOperation for malformed references
func Resolve(scene Scene, src TemplateSource) (Scene, error) {
	if src == nil {
		src = TemplateSet{}
	}
	r := &resolver{src: src, active: make(map[templateRef]struct{})}

	out := scene.DeepCopy()
	handlers, err := r.handlers(scene.Handlers)
	if err != nil {
		return Scene{}, err
	}
	out.Handlers = handlers
	return out, nil
}

func (r *resolver) enter(ref templateRef) error {
	if _, ok := r.active[ref]; ok {
		path := make([]string, 0, len(r.stack)+1)
		for _, s := range r.stack {
			path = append(path, s.String())
		}
		path = append(path, ref.String())
		return &CircularReferenceError{Kind: ref.kind, Name: ref.name, Path: path}
	}
	r.active[ref] = struct{}{}
	r.stack = append(r.stack, ref)
	return nil
}

func (r *resolver) leave(ref templateRef) {
	delete(r.active, ref)
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *resolver) handlers(hs []StateHandler) ([]StateHandler, error) {
	if hs == nil {
		return nil, nil
	}
	out := make([]StateHandler, 0, len(hs))
	for _, h := range hs {
		if h.Template == "" {
			resolved, err := r.handler(h)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
			continue
		}

		if len(h.Operations) > 0 || len(h.SubHandlers) > 0 {
			return nil, fmt.Errorf("%w: template %q reference also defines operations or sub_states",
				ErrInvalidHandler, h.Template)
		}
		expanded, err := r.handlerTemplate(h.Template)
		if err != nil {
			return nil, err
		}

		if h.States == "" && h.Interrupt == "" && len(h.Notify) == 0 {
			out = append(out, expanded...)
			continue
		}
		out = append(out, StateHandler{
			States:      h.States,
			Interrupt:   h.Interrupt,
			Notify:      copyNotify(h.Notify),
			SubHandlers: expanded,
		})
	}
	return out, nil
}

func (r *resolver) handler(h StateHandler) (StateHandler, error) {
	out := StateHandler{
		States:    h.States,
		Interrupt: h.Interrupt,
		Notify:    copyNotify(h.Notify),
	}
	var err error
	if out.Operations, err = r.operations(h.Operations); err != nil {
		return StateHandler{}, err
	}
	if out.SubHandlers, err = r.handlers(h.SubHandlers); err != nil {
		return StateHandler{}, err
	}
	return out, nil
}

func (r *resolver) handlerTemplate(name string) ([]StateHandler, error) {
	ref := templateRef{kind: KindHandler, name: name}
	if err := r.enter(ref); err != nil {
		return nil, err
	}
	defer r.leave(ref)

	tmpl, ok := r.src.HandlerTemplate(name)
	if !ok {
		return nil, &TemplateNotFoundError{Kind: KindHandler, Name: name}
	}
	expanded, err := r.handlers(tmpl)
	if err != nil {
		return nil, err
	}
	if expanded == nil {
		expanded = []StateHandler{}
	}
	return expanded, nil
}

func (r *resolver) operations(ops []OperationDef) ([]OperationDef, error) {
	if ops == nil {
		return nil, nil
	}
	out := make([]OperationDef, 0, len(ops))
	for _, op := range ops {
		if op.Template == "" {
			out = append(out, op.DeepCopy())
			continue
		}
		if op.Name != "" || len(op.Params) > 0 || len(op.Notify) > 0 {
			return nil, fmt.Errorf("%w: template %q reference must not set other fields",
				ErrInvalidOperation, op.Template)
		}
		expanded, err := r.operationTemplate(op.Template)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func (r *resolver) operationTemplate(name string) ([]OperationDef, error) {
	ref := templateRef{kind: KindOperation, name: name}
	if err := r.enter(ref); err != nil {
		return nil, err
	}
	defer r.leave(ref)

	tmpl, ok := r.src.OperationTemplate(name)
	if !ok {
		return nil, &TemplateNotFoundError{Kind: KindOperation, Name: name}
	}
	return r.operations(tmpl)
}
