package commands

import (
	"fmt"
	"strconv"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/spf13/cobra"
)

func newGetCommand() *cobra.Command {
	var (
		asType string
		def    string
	)

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Read one configuration value",
		Long: `Read the value stored at a dotted path.

--type selects the accessor:
  raw     the stored text, whatever its type
  string  string values only
  int     integer values only
  float   floats, and integers widened
  bool    boolean values only
  array   array elements, one per line

A value of another type yields the default. A missing path is an error
unless --default is given.`,
		Example: `  # Project name
  cerberus get project.name

  # Port of the second proxy, 80 when unset
  cerberus get proxies.1.external_port --type int --default 80

  # Networks of the first proxy
  cerberus get proxies.0.networks --type array`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			hasDefault := cmd.Flags().Changed("default")

			s, err := newSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.load(ctx)
			if err != nil {
				return err
			}

			if _, ok := doc.Lookup(path); !ok && !hasDefault {
				return fmt.Errorf("key %s not found in %s", path, doc.Source())
			}

			value, err := readValue(doc, path, asType, def)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"path":  path,
					"value": value,
				})
			}

			if values, ok := value.([]config.Value); ok {
				for _, v := range values {
					fmt.Fprintln(out, v.Raw)
				}
				return nil
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&asType, "type", "t", "raw", "accessor: raw, string, int, float, bool, array")
	cmd.Flags().StringVarP(&def, "default", "d", "", "value to use when the path is missing or has another type")

	return cmd
}

// readValue reads path through the accessor named by asType.
func readValue(doc *config.Document, path, asType, def string) (interface{}, error) {
	switch asType {
	case "raw":
		return doc.Get(path, def), nil

	case "string":
		return doc.GetString(path, def), nil

	case "int":
		n := 0
		if def != "" {
			parsed, err := strconv.Atoi(def)
			if err != nil {
				return nil, fmt.Errorf("invalid integer default %q: %w", def, err)
			}
			n = parsed
		}
		return doc.GetInt(path, n), nil

	case "float":
		f := 0.0
		if def != "" {
			parsed, err := strconv.ParseFloat(def, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid float default %q: %w", def, err)
			}
			f = parsed
		}
		return doc.GetFloat(path, f), nil

	case "bool":
		b := false
		if def != "" {
			parsed, ok := config.ParseBool(def)
			if !ok {
				return nil, fmt.Errorf("invalid boolean default %q", def)
			}
			b = parsed
		}
		return doc.GetBool(path, b), nil

	case "array":
		var fallback []config.Value
		if def != "" {
			fallback = config.SplitArray(def)
		}
		return doc.GetArray(path, fallback), nil

	default:
		return nil, fmt.Errorf("unknown type %q (must be raw, string, int, float, bool or array)", asType)
	}
}
