package main

import (
	"fmt"
)

// runConfig prints the effective configuration as YAML with the API key
// masked.
func runConfig(args []string, env *Environment) error {
	flags, err := parseConfigFlags(args, env.Stderr)
	if err != nil {
		return err
	}

	st, err := loadSettings(&flags.common, &flags.provider, "", env)
	if err != nil {
		return err
	}

	out, err := st.cfg.Redacted().Marshal()
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	if !flags.common.quiet {
		fmt.Fprintf(env.Stdout, "# source: %s\n", st.source)
	}
	_, err = env.Stdout.Write(out)
	return err
}
