package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// Output formats accepted by commands that print structured data.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// AddFlagValidation wraps an existing string flag so that invalid values are
// rejected while the command line is parsed rather than when the command runs.
func AddFlagValidation(flags *pflag.FlagSet, name string, validator func(string) error) {
	flag := flags.Lookup(name)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(value string) error {
	if err := v.validator(value); err != nil {
		return err
	}
	return v.Value.Set(value)
}

// oneOf accepts exactly one of the allowed values.
func oneOf(allowed ...string) func(string) error {
	return func(value string) error {
		if slices.Contains(allowed, value) {
			return nil
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", port)
	}
	return nil
}

// cutBinding splits a name=value pair. Names may not be empty.
func cutBinding(pair string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(pair, "=")
	name = strings.TrimPrefix(strings.TrimSpace(name), "$")
	if !ok || name == "" {
		return "", "", false
	}
	return name, value, true
}

func errInvalidBinding(pair string) error {
	return fmt.Errorf("invalid binding %q: expected name=value", pair)
}
