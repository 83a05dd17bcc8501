package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	css "github.com/Discord-CSS-Datamining/discord-css-differ"
	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/encode"
)

var formats = []string{"summary", "text", "json", "cbor"}

func newParseCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse a stylesheet and print its rule tree",
		Long: `Parse a stylesheet and print its rule tree.

Formats:
  summary  per top-level rule, the number of nested rules, selector parts
           and declarations, followed by the declarations
  text     canonical stylesheet text
  json     rule tree as JSON
  cbor     rule tree as canonical CBOR`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range formats {
				if f == format {
					return nil
				}
			}
			return fmt.Errorf("unknown format %q, expected one of %s", format, strings.Join(formats, ", "))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.read(args)
			if err != nil {
				return err
			}
			ss, perr := a.parse(src)
			if ss != nil {
				if err := write(a.stdout, format, ss); err != nil {
					return ioError(err)
				}
			}
			if perr != nil {
				return a.report(src, perr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "summary", "Output format: "+strings.Join(formats, ", "))
	return cmd
}

func newSelectorsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "selectors [file|-]",
		Short: "Print every selector, one per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.read(args)
			if err != nil {
				return err
			}
			ss, perr := a.parse(src)
			if ss != nil {
				if err := writeSelectors(a.stdout, ss.Rules); err != nil {
					return ioError(err)
				}
			}
			if perr != nil {
				return a.report(src, perr)
			}
			return nil
		},
	}
}

func newFingerprintCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint [file|-]",
		Short: "Print a digest of the rule tree",
		Long: `Print the hex BLAKE2b-256 digest of the canonical encoding of the rule tree.

Stylesheets that differ only in formatting have the same fingerprint.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.read(args)
			if err != nil {
				return err
			}
			ss, err := a.parse(src)
			if err != nil {
				return a.report(src, err)
			}
			sum, err := encode.Fingerprint(ss)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, sum)
			return ioErrorOrNil(err)
		},
	}
}

func ioErrorOrNil(err error) error {
	if err != nil {
		return ioError(err)
	}
	return nil
}

// write renders ss to w in the given format.
func write(w io.Writer, format string, ss *ast.StyleSheet) error {
	switch format {
	case "text":
		var p css.Printer
		return p.Print(w, ss)
	case "json":
		_, err := w.Write(append(encode.JSON(ss), '\n'))
		return err
	case "cbor":
		data, err := encode.MarshalCBOR(ss)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return writeSummary(w, ss)
	}
}

// writeSummary prints, for each top-level rule, how many rules it contains,
// how many parts its selector has and how many declarations it carries,
// then its declarations as "key:value" lines.
func writeSummary(w io.Writer, ss *ast.StyleSheet) error {
	bw := bufio.NewWriter(w)
	for _, r := range ss.Rules {
		fmt.Fprintf(bw, "\nFound block with %d inner blocks, and %d selectors, with %d declarations\n",
			len(r.Children), len(r.Selector), len(r.Declarations))
		for _, d := range r.Declarations {
			fmt.Fprintf(bw, "%s:%s\n", d.Key, d.Value)
		}
	}
	return bw.Flush()
}

func writeSelectors(w io.Writer, rules ast.Rules) error {
	bw := bufio.NewWriter(w)
	ast.Walk(rules, func(r *ast.RuleNode, depth int) bool {
		if r.AtRule == nil {
			fmt.Fprintln(bw, r.Selector.String())
		}
		return true
	})
	return bw.Flush()
}
