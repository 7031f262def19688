package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDumpCommand() *cobra.Command {
	var (
		format string
		stats  bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every entry of the configuration",
		Long: `Print every entry with its inferred type, sorted by path.

Formats:
  text  one "path = value  (type)" line per entry
  yaml  a flat mapping from path to typed value
  json  a list of {path, value, type} objects

With --stats a summary of the document is printed instead.`,
		Example: `  # Human-readable dump
  cerberus dump

  # Typed YAML for other tools
  cerberus dump --format yaml

  # Entry counts by type and table
  cerberus dump --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if jsonOutput {
				format = "json"
			}

			s, err := newSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.load(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stats {
				return writeStats(out, doc.Stats(), format)
			}

			switch format {
			case "text":
				return doc.Dump(out)
			case "json":
				entries := doc.Entries()
				sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
				return writeJSON(out, entries)
			case "yaml":
				return writeYAML(out, yamlDocument(doc))
			default:
				return fmt.Errorf("unknown format %q (must be text, yaml or json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, yaml, json")
	cmd.Flags().BoolVar(&stats, "stats", false, "print a summary instead of the entries")

	return cmd
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func writeStats(w io.Writer, stats config.Stats, format string) error {
	switch format {
	case "json":
		return writeJSON(w, stats)
	case "yaml":
		return writeYAML(w, stats)
	case "text":
		fmt.Fprintf(w, "entries:  %d\n", stats.Entries)
		fmt.Fprintf(w, "errors:   %d\n", stats.Errors)
		fmt.Fprintf(w, "warnings: %d\n", stats.Warnings)
		for _, name := range stats.Tables {
			if n, ok := stats.ArrayTables[name]; ok {
				fmt.Fprintf(w, "table %s: %d instance(s)\n", name, n)
			} else {
				fmt.Fprintf(w, "table %s\n", name)
			}
		}
		types := make([]string, 0, len(stats.ByType))
		for t := range stats.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "type %s: %d\n", t, stats.ByType[t])
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (must be text, yaml or json)", format)
	}
}

// yamlDocument renders doc as a mapping from path to a node tagged with the
// entry's type. Arrays become sequences of typed elements.
func yamlDocument(doc *config.Document) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, path := range doc.ListKeys("") {
		entry, _ := doc.Lookup(path)
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path},
			yamlValue(entry),
		)
	}
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

func yamlValue(v config.Value) *yaml.Node {
	switch v.Type {
	case config.TypeInteger:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.Raw}
	case config.TypeFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v.Raw}
	case config.TypeBoolean:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.Raw}
	case config.TypeArray:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, elem := range config.SplitArray(v.Raw) {
			seq.Content = append(seq.Content, yamlValue(elem))
		}
		return seq
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Raw}
	}
}
