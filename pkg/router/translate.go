package router

import (
	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// translateFor adapts req's model to one the target backend serves. The
// maps are consulted per-backend first, then globally; with the hybrid
// strategy a family-wise match against the target's supported models is
// the last resort. The request is cloned before any rewrite.
func (r *Router) translateFor(req *ir.ChatRequest, target *registeredBackend) (*ir.ChatRequest, error) {
	model := req.Model()
	if model == "" {
		return req, nil
	}
	caps := target.backend.Capabilities()
	if caps.SupportsModel(model) {
		return req, nil
	}

	if to, ok := r.cfg.Translation.PerBackend[target.name][model]; ok && to != "" {
		return r.substitute(req, model, to, "per-backend", true), nil
	}
	if to, ok := r.cfg.Translation.Global[model]; ok && to != "" {
		return r.substitute(req, model, to, "global", true), nil
	}
	if r.cfg.Translation.Strategy != TranslationStrict {
		if to := familyMatch(model, caps.SupportedModels); to != "" {
			return r.substitute(req, model, to, "family", r.cfg.Translation.WarnOnDefault), nil
		}
	}
	return nil, adapter.Newf(adapter.ErrorCodeNoBackend, "backend %q does not serve model %q and no translation applies", target.name, model).WithBackend(target.name)
}

// familyMatch returns the first supported model in the same family as
// model, or empty when none share a family.
func familyMatch(model string, supported []string) string {
	family := adapter.ModelFamily(model)
	if family == "" {
		return ""
	}
	for _, m := range supported {
		if adapter.ModelFamily(m) == family {
			return m
		}
	}
	return ""
}
