package project

import (
	"fmt"
	"io"

	"github.com/roach88/modelcore/internal/ir"
)

// RenderText writes a human-readable report of results:
//
//	project: demo
//	LibraryPlugin (library): applied
//	  library = {"name":"Central"}
func RenderText(w io.Writer, projectName string, results []PluginResult) error {
	if _, err := fmt.Fprintf(w, "project: %s\n", projectName); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s (%s): %s\n", r.PluginType, r.SoftwareType, r.Outcome())
		for _, key := range r.Snapshot.SortedKeys() {
			data, err := ir.MarshalCanonical(r.Snapshot[key])
			if err != nil {
				return fmt.Errorf("render %s.%s: %w", r.PluginType, key, err)
			}
			fmt.Fprintf(w, "  %s = %s\n", key, data)
		}
		if r.Err != nil {
			fmt.Fprintf(w, "  error: %s\n", r.Message())
			for _, p := range r.Problems() {
				fmt.Fprintf(w, "    - %s\n", p)
			}
		}
	}
	return nil
}

// RenderJSON writes results as one line of canonical JSON.
func RenderJSON(w io.Writer, projectName string, results []PluginResult) error {
	plugins := make([]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{
			"plugin_type":   r.PluginType,
			"software_type": r.SoftwareType,
			"outcome":       r.Outcome(),
			"snapshot":      r.Snapshot,
		}
		if r.Err != nil {
			entry["message"] = r.Message()
		}
		if problems := r.Problems(); len(problems) > 0 {
			list := make([]any, len(problems))
			for i, p := range problems {
				list[i] = p
			}
			entry["problems"] = list
		}
		plugins = append(plugins, entry)
	}

	data, err := ir.MarshalCanonical(map[string]any{
		"project": projectName,
		"plugins": plugins,
	})
	if err != nil {
		return fmt.Errorf("render json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
