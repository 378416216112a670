package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	toolLabelRe  = regexp.MustCompile(`TOOL:\s*(\w+)`)
	paramsRe     = regexp.MustCompile(`(?s)PARAMS:\s*(\{.*?\})`)
	callArgKVRe  = regexp.MustCompile(`(\w+)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	callNameArgs = `\s*\(([^)]*)\)`
)

// ExtractJSONObject scans text for the first '{' and tracks nesting depth
// character by character until the matching '}' is found, then returns that
// exact substring. Robust against braces nested inside tool parameters, which
// a naive non-greedy regex would truncate. Returns false when no balanced
// object is present.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseStrategy extracts an action from raw model output, or reports that the
// strategy does not apply. Strategies are pure: no state, no side effects.
type ParseStrategy func(text string) (*ParsedAction, bool)

// ActionParser converts an opaque model response into a structured tool
// invocation, or determines that none is present (the model produced a final
// answer). Strategies run in strict precedence order; the first hit wins.
type ActionParser struct {
	strategies []ParseStrategy
}

// NewActionParser builds the standard three-strategy chain. The catalog is
// consulted only by the call-syntax fallback, which must not fire for
// arbitrary identifiers. An action naming an unregistered tool is still
// returned by the earlier strategies: unknown tools are an error condition
// after parsing, not during.
func NewActionParser(catalog ToolCatalog) *ActionParser {
	return &ActionParser{
		strategies: []ParseStrategy{
			ParseJSONAction,
			ParseLabelledAction,
			ParseCallSyntax(func() []string {
				if catalog == nil {
					return nil
				}
				return catalog.Names()
			}),
		},
	}
}

// Parse runs the strategy chain. A nil result means no action: the response
// is a final answer.
func (p *ActionParser) Parse(text string) *ParsedAction {
	for _, strategy := range p.strategies {
		if action, ok := strategy(text); ok {
			return action
		}
	}
	return nil
}

// ParseJSONAction extracts a brace-matched JSON object and accepts it when it
// carries an "action" key. Malformed JSON is treated as "no JSON found" and
// falls through; it never escapes the parser.
func ParseJSONAction(text string) (*ParsedAction, bool) {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}
	name, ok := payload["action"].(string)
	if !ok || name == "" {
		return nil, false
	}

	params, _ := payload["parameters"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}
	return &ParsedAction{Action: name, Parameters: params}, true
}

// ParseLabelledAction handles the legacy `TOOL: <name>` / `PARAMS: {...}`
// format. PARAMS is optional; its non-greedy match is a known limitation with
// nested braces.
func ParseLabelledAction(text string) (*ParsedAction, bool) {
	toolMatch := toolLabelRe.FindStringSubmatch(text)
	if toolMatch == nil {
		return nil, false
	}

	params := map[string]any{}
	if paramsMatch := paramsRe.FindStringSubmatch(text); paramsMatch != nil {
		// Unparsable params leave the action intact with empty parameters.
		var decoded map[string]any
		if err := json.Unmarshal([]byte(paramsMatch[1]), &decoded); err == nil {
			params = decoded
		}
	}
	return &ParsedAction{Action: toolMatch[1], Parameters: params}, true
}

// ParseCallSyntax handles the legacy `name(key="value")` format for known
// registered tools only. Only string-valued key="v" / key='v' pairs are
// recognized; numeric and boolean literals are not reliably parsed in this
// form.
func ParseCallSyntax(names func() []string) ParseStrategy {
	return func(text string) (*ParsedAction, bool) {
		for _, name := range names() {
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + callNameArgs)
			if err != nil {
				continue
			}
			match := re.FindStringSubmatch(text)
			if match == nil {
				continue
			}

			params := map[string]any{}
			for _, kv := range callArgKVRe.FindAllStringSubmatch(match[1], -1) {
				value := kv[2]
				if value == "" {
					value = kv[3]
				}
				params[kv[1]] = value
			}
			return &ParsedAction{Action: name, Parameters: params}, true
		}
		return nil, false
	}
}
