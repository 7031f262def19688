package policy

import (
	"strconv"

	"github.com/cerberus/cerberus/pkg/config"
)

// NewInput converts a document into policy input.
func NewInput(doc *config.Document) *Input {
	entries := doc.Entries()

	in := &Input{
		Source:      doc.Source(),
		Values:      make(map[string]interface{}, len(entries)),
		Entries:     make(map[string]InputEntry, len(entries)),
		ArrayTables: make(map[string]int),
	}

	for _, kv := range entries {
		in.Values[kv.Path] = nativeValue(config.Value{Raw: kv.Value, Type: kv.Type})
		in.Entries[kv.Path] = InputEntry{Value: kv.Value, Type: kv.Type.String()}
	}
	for name, n := range doc.Stats().ArrayTables {
		in.ArrayTables[name] = n
	}

	return in
}

func nativeValue(v config.Value) interface{} {
	switch v.Type {
	case config.TypeBoolean:
		return v.Raw == "true"
	case config.TypeInteger:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		return v.Raw
	case config.TypeFloat:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}
		return v.Raw
	case config.TypeArray:
		elems := config.SplitArray(v.Raw)
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			out[i] = nativeValue(e)
		}
		return out
	default:
		return v.Raw
	}
}
