package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/eringen/sanitypress/groq"
	"github.com/eringen/sanitypress/sanity"
)

var (
	queryParams  []string
	queryDrafts  bool
	queryTimeout time.Duration
	queryTable   bool
)

var queryCmd = &cobra.Command{
	Use:   "query [groq]",
	Short: "Run a GROQ query against the configured dataset",
	Long: `Run a GROQ query and print the result as JSON, or as a table with --table.
Parameters are bound with --param name=value; value is parsed as JSON and
falls back to a plain string.`,
	Example: `  sanitypress query '*[_type == "post" && slug.current == $slug][0]{title}' --param slug=rome`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		q := groq.New(args[0])
		for _, p := range queryParams {
			name, raw, ok := strings.Cut(p, "=")
			if !ok {
				return fmt.Errorf("invalid --param %q, want name=value", p)
			}
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
			q = q.With(name, v)
		}

		client, err := sanity.NewClient(sanity.Config{Endpoint: cfg.Sanity, Timeout: queryTimeout})
		if err != nil {
			return err
		}
		var opts []sanity.FetchOption
		if queryDrafts {
			opts = append(opts, sanity.WithPerspective(sanity.PerspectiveDrafts), sanity.WithToken(cfg.ReadToken))
		}

		res, err := client.Fetch(cmd.Context(), q, opts...)
		if err != nil {
			return err
		}
		if queryTable {
			renderTable(os.Stdout, res.Items())
			return nil
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res.Value())
	},
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "Bind a query parameter (name=value)")
	queryCmd.Flags().BoolVar(&queryDrafts, "drafts", false, "Include drafts (needs SANITY_READ_TOKEN)")
	queryCmd.Flags().BoolVar(&queryTable, "table", false, "Print documents as a table of id, type, title and slug")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", sanity.DefaultTimeout, "Request timeout")
	rootCmd.AddCommand(queryCmd)
}

func renderTable(w io.Writer, docs []sanity.Document) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Type", "Title", "Slug"})
	for _, d := range docs {
		title := d.String("title")
		if title == "" {
			title = d.String("name")
		}
		t.AppendRow(table.Row{d.ID(), d.Type(), title, d.Slug()})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(docs)})
	t.Render()
}
