package expr

import (
	"strings"

	"github.com/autoeditor/autoeditor-agent/internal/quoting"
)

// EditMode selects how the edit expression is produced.
type EditMode string

const (
	ModeSingle  EditMode = "single"
	ModeCombine EditMode = "combine"
	ModeManual  EditMode = "manual"
)

// Operator joins combined rules.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// ParseOperator maps anything other than "and" to "or".
func ParseOperator(s string) Operator {
	if Operator(strings.ToLower(strings.TrimSpace(s))) == OperatorAnd {
		return OperatorAnd
	}
	return OperatorOr
}

// EditSpec is the edit portion of the form.
type EditSpec struct {
	Mode     EditMode
	Single   Rule
	Rules    []Rule
	Operator Operator
	Manual   string
}

type param struct {
	key   string
	value string
}

type paramList []param

// add appends key=value when the trimmed value is non-empty.
func (p *paramList) add(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	*p = append(*p, param{key: key, value: value})
}

func (p *paramList) flag(key string, on bool) {
	if on {
		*p = append(*p, param{key: key, value: "true"})
	}
}

// FormatValue quotes a parameter value when it would otherwise break the
// expression grammar.
func FormatValue(v string) string {
	if strings.ContainsAny(v, `,"`) || quoting.HasSpace(v) {
		return quoting.Quote(v)
	}
	return v
}

func joinParams(method Method, params []param) string {
	if len(params) == 0 {
		return string(method)
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.key+"="+FormatValue(p.value))
	}
	return string(method) + ":" + strings.Join(parts, ",")
}

// FormatRule renders one rule. A rule without a condition renders empty.
func FormatRule(r Rule) string {
	if r.Cond == nil {
		return ""
	}
	switch r.Cond.Method() {
	case MethodNone:
		return "none"
	case MethodAll:
		return "all/e"
	}
	out := joinParams(r.Cond.Method(), r.Cond.params())
	if r.Invert {
		return "not (" + out + ")"
	}
	return out
}

// Combine formats every rule and joins the non-empty results with op.
func Combine(rules []Rule, op Operator) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		if s := FormatRule(r); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	if op != OperatorAnd {
		op = OperatorOr
	}
	return strings.Join(parts, " "+string(op)+" ")
}

// BuildExpression produces the value of --edit for spec. An empty result
// means the flag is omitted.
func BuildExpression(spec EditSpec) string {
	switch spec.Mode {
	case ModeManual:
		return strings.TrimSpace(spec.Manual)
	case ModeCombine:
		return Combine(spec.Rules, spec.Operator)
	default:
		return FormatRule(spec.Single)
	}
}
