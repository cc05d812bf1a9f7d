package command

import (
	"strconv"
	"strings"
)

// ArgPrefix marks a flag token inside a command message, e.g. "-m".
const ArgPrefix = "-"

// MainArg is the key of the pseudo-argument holding the leftover message
// text. Declared flags must not use it as their name.
const MainArg = "main"

// ArgArity says whether a flag consumes a value token and how it is
// coerced.
type ArgArity int

const (
	// ArityNone flags consume only their own token.
	ArityNone ArgArity = iota
	// ArityString flags consume the following token as-is.
	ArityString
	// ArityNumber flags consume the following token and coerce it to an
	// int. Coercion failure leaves the value unset, validating is the
	// callback's job.
	ArityNumber
)

// ArgDef declares one flag of a command's argument schema. Extraction
// follows declaration order.
type ArgDef struct {
	Name    string
	Aliases []string
	Arity   ArgArity
}

// Arg is the extraction result for one declared flag. Value is a string,
// an int or nil, mirroring the declared arity.
type Arg struct {
	Triggered bool
	Value     any
}

// Text returns the value as a string if one was captured.
func (a Arg) Text() (string, bool) {
	s, ok := a.Value.(string)
	return s, ok
}

// Int returns the value as an int if one was captured and coerced.
func (a Arg) Int() (int, bool) {
	i, ok := a.Value.(int)
	return i, ok
}

// Args maps argument names (plus MainArg) to their extraction results.
type Args map[string]Arg

// ExtractArgs scans the message tokens for each declared flag in
// declaration order. A token consumed by an earlier flag is unavailable to
// later ones, so one literal token can never satisfy two flags. The tokens
// slice itself is never mutated; consumption is tracked in a separate
// bitset.
//
// Whatever remains, minus the trigger word at index 0, is joined with
// single spaces into the MainArg entry.
func ExtractArgs(tokens []string, schema []ArgDef) Args {
	args := make(Args, len(schema)+1)
	consumed := make([]bool, len(tokens))

	for _, def := range schema {
		index := findFlag(tokens, consumed, def.Aliases)
		if index == -1 {
			args[def.Name] = Arg{}
			continue
		}

		consumed[index] = true

		if def.Arity == ArityNone {
			args[def.Name] = Arg{Triggered: true}
			continue
		}

		// Valued flag, consume the immediately following token.
		if index+1 >= len(tokens) || consumed[index+1] {
			args[def.Name] = Arg{Triggered: true}
			continue
		}

		raw := tokens[index+1]
		consumed[index+1] = true

		switch def.Arity {
		case ArityString:
			args[def.Name] = Arg{Triggered: true, Value: raw}
		case ArityNumber:
			n, err := strconv.Atoi(raw)
			if err != nil {
				args[def.Name] = Arg{Triggered: true}
				continue
			}

			args[def.Name] = Arg{Triggered: true, Value: n}
		}
	}

	var rest []string
	for i := 1; i < len(tokens); i++ {
		if !consumed[i] {
			rest = append(rest, tokens[i])
		}
	}

	main := strings.Join(rest, " ")
	if main == "" {
		args[MainArg] = Arg{}
	} else {
		args[MainArg] = Arg{Triggered: true, Value: main}
	}

	return args
}

func findFlag(tokens []string, consumed []bool, aliases []string) int {
	for i, token := range tokens {
		if consumed[i] {
			continue
		}

		for _, alias := range aliases {
			if token == ArgPrefix+alias {
				return i
			}
		}
	}

	return -1
}
