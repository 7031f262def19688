package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cerberus/cerberus/pkg/config"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDiagnostics(w io.Writer, diags []config.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, d.String())
	}
}

func printReport(w io.Writer, rep *report) {
	printDiagnostics(w, rep.Diagnostics)

	status := "OK"
	if !rep.Passed {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%s: %s (%d entries, %d errors, %d warnings)\n",
		rep.Source, status, rep.Entries, rep.HardErrors, rep.Warnings)
	if rep.SnapshotID != "" {
		fmt.Fprintf(w, "recorded snapshot %s\n", rep.SnapshotID)
	}
}
