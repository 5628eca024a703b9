package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Format selects how a command renders its result
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"

	outputFlag = "output"
)

// AddOutputFlag registers -o/--output on cmd. Persistent flags are inherited
// by subcommands.
func AddOutputFlag(cmd *cobra.Command, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	flags.StringP(outputFlag, "o", string(FormatText), "Output format (text or json)")
}

// OutputFormat reads and validates the --output flag
func OutputFormat(cmd *cobra.Command) (Format, error) {
	value, err := cmd.Flags().GetString(outputFlag)
	if err != nil {
		return "", err
	}
	switch f := Format(value); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text or json)", value)
	}
}

// PrintJSON writes v to w as indented JSON
func PrintJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
