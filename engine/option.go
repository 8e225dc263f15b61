package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// OptionSpec is an option advertised by the engine during the UCI handshake.
type OptionSpec struct {
	Name    string
	Type    string // check, spin, combo, button or string
	Default string
	Min     int
	Max     int
	Vars    []string
}

// RejectedOption records a configured option that was skipped.
type RejectedOption struct {
	Name   string
	Value  string
	Reason error
}

// EngineID holds the engine's self-reported identity.
type EngineID struct {
	Name   string
	Author string
}

var optionKeywords = []string{"name", "type", "default", "min", "max", "var"}

// parseOption parses an "option name ... type ..." line. Names and values
// may contain spaces; keywords delimit them.
func parseOption(line string) (OptionSpec, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "option" {
		return OptionSpec{}, fmt.Errorf("not an option line: %q", line)
	}

	var (
		spec    OptionSpec
		key     string
		current []string
	)
	flush := func() error {
		val := strings.Join(current, " ")
		switch key {
		case "name":
			spec.Name = val
		case "type":
			spec.Type = val
		case "default":
			if val == "<empty>" {
				val = ""
			}
			spec.Default = val
		case "min", "max":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("option %q: bad %s %q", spec.Name, key, val)
			}
			if key == "min" {
				spec.Min = n
			} else {
				spec.Max = n
			}
		case "var":
			spec.Vars = append(spec.Vars, val)
		}
		current = current[:0]
		return nil
	}

	for _, tok := range fields[1:] {
		// inside a name only "type" acts as a keyword
		if slices.Contains(optionKeywords, tok) && !(key == "name" && tok != "type") {
			if err := flush(); err != nil {
				return OptionSpec{}, err
			}
			key = tok
			continue
		}
		current = append(current, tok)
	}
	if err := flush(); err != nil {
		return OptionSpec{}, err
	}
	if spec.Name == "" || spec.Type == "" {
		return OptionSpec{}, fmt.Errorf("option line without name or type: %q", line)
	}
	return spec, nil
}

// Validate checks value against the advertised type and bounds and returns
// the value in the form the engine expects.
func (s OptionSpec) Validate(value string) (string, error) {
	switch s.Type {
	case "spin":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("%w: %s: %q is not an integer", ErrOptionRejected, s.Name, value)
		}
		if n < s.Min || n > s.Max {
			return "", fmt.Errorf("%w: %s: %d outside [%d, %d]", ErrOptionRejected, s.Name, n, s.Min, s.Max)
		}
		return strconv.Itoa(n), nil
	case "check":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("%w: %s: %q is not a boolean", ErrOptionRejected, s.Name, value)
		}
		return strconv.FormatBool(b), nil
	case "combo":
		for _, v := range s.Vars {
			if strings.EqualFold(v, value) {
				return v, nil
			}
		}
		return "", fmt.Errorf("%w: %s: %q not one of %v", ErrOptionRejected, s.Name, value, s.Vars)
	case "string":
		return value, nil
	case "button":
		return "", fmt.Errorf("%w: %s: button options cannot be configured", ErrOptionRejected, s.Name)
	default:
		return "", fmt.Errorf("%w: %s: unknown option type %q", ErrOptionRejected, s.Name, s.Type)
	}
}
