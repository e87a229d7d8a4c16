// Package toolcall extracts structured tool invocations from generated
// assistant text. The grammar is deliberately strict and fails closed: a
// single malformed call rejects the whole block, so the orchestrator never
// executes a half-understood batch.
//
// Block format, embedded anywhere in the text:
//
//	<tools>name(param='value', param2='value2'); name2(param='value')</tools>
package toolcall

import (
	"fmt"
	"regexp"
	"strings"
)

// Invocation is one parsed tool call.
type Invocation struct {
	Name      string
	Arguments map[string]string
}

// ParseError describes a grammar violation, pointing at the offending
// fragment. No invocations from the block are returned alongside it.
type ParseError struct {
	Fragment string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tool call parse error: %s (near %q)", e.Reason, e.Fragment)
}

var (
	blockRe = regexp.MustCompile(`(?s)<tools>(.*?)</tools>`)
	nameRe  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	// Placeholder tokens the model sometimes echoes back instead of a real
	// value, e.g. <path> or <YYYY-MM-DD>.
	placeholderRe = regexp.MustCompile(`^<[^>]*>$`)
)

// Parse extracts zero or more invocations from a block of generated text
// and validates them against the registry. An absent or empty <tools>
// block is valid and yields no invocations.
func Parse(text string, registry *Registry) ([]Invocation, error) {
	match := blockRe.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}

	content := strings.TrimSpace(match[1])
	if content == "" {
		return nil, nil
	}

	var invocations []Invocation
	for _, raw := range strings.Split(content, ";") {
		call := strings.TrimSpace(raw)
		if call == "" {
			continue
		}
		inv, err := parseCall(call)
		if err != nil {
			return nil, err
		}
		if registry != nil {
			if err := registry.Validate(inv); err != nil {
				return nil, err
			}
		}
		invocations = append(invocations, inv)
	}
	return invocations, nil
}

func parseCall(call string) (Invocation, error) {
	open := strings.IndexByte(call, '(')
	if open < 0 || !strings.HasSuffix(call, ")") {
		return Invocation{}, &ParseError{Fragment: call, Reason: "expected name(...)"}
	}

	name := strings.TrimSpace(call[:open])
	if !nameRe.MatchString(name) {
		return Invocation{}, &ParseError{Fragment: call, Reason: "invalid tool name"}
	}

	inv := Invocation{Name: name, Arguments: map[string]string{}}

	params := strings.TrimSpace(call[open+1 : len(call)-1])
	if params == "" {
		return inv, nil
	}

	rest := params
	for {
		key, remainder, err := scanKey(rest, call)
		if err != nil {
			return Invocation{}, err
		}
		value, remainder, err := scanValue(remainder, call)
		if err != nil {
			return Invocation{}, err
		}
		if placeholderRe.MatchString(strings.TrimSpace(value)) {
			return Invocation{}, &ParseError{
				Fragment: fmt.Sprintf("%s=%q", key, value),
				Reason:   "placeholder token is not a valid argument value",
			}
		}
		if _, dup := inv.Arguments[key]; dup {
			return Invocation{}, &ParseError{Fragment: call, Reason: "duplicate parameter " + key}
		}
		inv.Arguments[key] = value

		remainder = strings.TrimSpace(remainder)
		if remainder == "" {
			return inv, nil
		}
		if !strings.HasPrefix(remainder, ",") {
			return Invocation{}, &ParseError{Fragment: remainder, Reason: "expected ',' between parameters"}
		}
		rest = strings.TrimSpace(remainder[1:])
		if rest == "" {
			return Invocation{}, &ParseError{Fragment: call, Reason: "trailing comma"}
		}
	}
}

func scanKey(s, call string) (key, rest string, err error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return "", "", &ParseError{Fragment: call, Reason: "expected key='value' parameter"}
	}
	key = strings.TrimSpace(s[:eq])
	if !nameRe.MatchString(key) {
		return "", "", &ParseError{Fragment: s, Reason: "invalid parameter name"}
	}
	return key, strings.TrimSpace(s[eq+1:]), nil
}

// scanValue consumes a single-quoted value. Double quotes and bare tokens
// are grammar violations, not values to be guessed at.
func scanValue(s, call string) (value, rest string, err error) {
	if s == "" {
		return "", "", &ParseError{Fragment: call, Reason: "missing parameter value"}
	}
	if s[0] == '"' {
		return "", "", &ParseError{Fragment: s, Reason: "values must use single quotes"}
	}
	if s[0] != '\'' {
		return "", "", &ParseError{Fragment: s, Reason: "unquoted parameter value"}
	}
	end := strings.IndexByte(s[1:], '\'')
	if end < 0 {
		return "", "", &ParseError{Fragment: s, Reason: "unterminated quoted value"}
	}
	return s[1 : 1+end], s[2+end:], nil
}
