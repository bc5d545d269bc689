// Command qparse compiles query strings offline: it prints the descriptor
// or the SQL the document store would run for it.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"MQueryAPI/internal/config"
	"MQueryAPI/internal/fragments"
	"MQueryAPI/internal/qparser"
	"MQueryAPI/internal/store"

	"github.com/spf13/cobra"
)

type options struct {
	parserConfig string
	queriesDir   string
	user         string
	filter       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "qparse",
		Short:         "Compile query strings into document-store queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.parserConfig, "config", "cfg/parser.yml", "parser config file")
	root.PersistentFlags().StringVar(&opts.queriesDir, "queries", "cfg/queries", "directory of named query fragments")
	root.PersistentFlags().StringVar(&opts.user, "user", "", "value of ${currentUser}")
	root.PersistentFlags().StringVar(&opts.filter, "filter", "", "structured JSON filter merged under the query")

	root.AddCommand(&cobra.Command{
		Use:   "parse <query>",
		Short: "Print the compiled query descriptor as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.build(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sql <collection> <query>",
		Short: "Print the SQL and arguments the document store would run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.build(args[1])
			if err != nil {
				return err
			}
			sb, err := store.BuildFindQuery(args[0], q)
			if err != nil {
				return err
			}
			sql, sqlArgs, err := sb.ToSql()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"sql": sql, "args": sqlArgs})
		},
	})
	return root
}

func (o *options) build(query string) (*qparser.Query, error) {
	parserOpts, err := config.LoadParserOptions(o.parserConfig)
	if err != nil {
		return nil, err
	}
	frags, err := fragments.LoadDir(o.queriesDir)
	if err != nil {
		return nil, err
	}

	var filter map[string]any
	if o.filter != "" {
		if err := json.Unmarshal([]byte(o.filter), &filter); err != nil {
			return nil, fmt.Errorf("--filter: %w", err)
		}
	}

	extra := map[string]any{}
	if o.user != "" {
		extra["currentUser"] = o.user
	}

	p := qparser.New(parserOpts)
	q, err := p.CompileWith(qparser.ParseQuery(query), filter)
	if err != nil {
		return nil, err
	}
	return p.Expand(q, frags.Context(extra))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
