package schemaparse

import "github.com/flowschema/evalengine/pkg/evalpath"

// walkRules compiles each entry of a field's "rules" array into a
// RuleSpec. A rule with a "condition" key is guarded: the validator only
// applies it when the compiled condition evaluates truthy.
func (p *parser) walkRules(path evalpath.Path, rules []any) error {
	for _, raw := range rules {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := m["kind"].(string)
		spec := RuleSpec{Kind: kind}
		if params, ok := m["params"].(map[string]any); ok {
			spec.Params = params
		}
		if msg, ok := m["message"].(string); ok {
			spec.Message = msg
		}
		if cond, ok := m["condition"]; ok {
			id, _, err := p.compile(cond)
			if err != nil {
				return err
			}
			spec.HasCondition = true
			spec.ConditionID = id
		}
		p.result.Rules[path.String()] = append(p.result.Rules[path.String()], spec)
	}
	return nil
}

// parseDependents compiles a field's "dependents" declaration: a "clear"
// list of target paths to blank out, and a "value" list of targets whose
// replacement value is itself a compiled expression.
func (p *parser) parseDependents(path evalpath.Path, dep map[string]any) (DependentsDecl, error) {
	decl := DependentsDecl{Source: path}

	if clears, ok := dep["clear"].([]any); ok {
		for _, t := range clears {
			target, ok := t.(string)
			if !ok {
				continue
			}
			decl.Effects = append(decl.Effects, DependentEffect{
				Target: evalpath.Normalize(target),
				Kind:   "clear",
			})
		}
	}

	if values, ok := dep["value"].([]any); ok {
		for _, v := range values {
			vm, ok := v.(map[string]any)
			if !ok {
				continue
			}
			target, _ := vm["target"].(string)
			effect := DependentEffect{Target: evalpath.Normalize(target), Kind: "value"}
			if expr, ok := vm["expr"]; ok {
				id, _, err := p.compile(expr)
				if err != nil {
					return DependentsDecl{}, err
				}
				effect.ValueID = id
				effect.HasValueID = true
			}
			decl.Effects = append(decl.Effects, effect)
		}
	}

	return decl, nil
}
