package main

import (
	"fmt"
	"strings"

	"eduattend/cmd/eduattend/ui"
	"eduattend/internal/dispatch"

	"github.com/spf13/cobra"
)

// runQuestions prints the suggested-question catalog, including entries
// added in the config file.
func runQuestions(cmd *cobra.Command, args []string) error {
	questions, err := dispatch.Catalog(appCfg.Questions)
	if err != nil {
		return fmt.Errorf("invalid question catalog: %w", err)
	}

	table := ui.NewTable("Suggested questions", "QUESTION", "KIND", "DETAILS")
	for _, q := range questions {
		label := strings.TrimSpace(q.Icon() + " " + q.Label())
		switch q := q.(type) {
		case *dispatch.Direct:
			table.AddRow(label, "direct", q.Text())
		case *dispatch.Templated:
			table.AddRow(label, "form", describeFields(q.Spec()))
		}
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), table.Render(ui.NewStyles(ui.ThemeNamed(theme))))
	return err
}

func describeFields(spec dispatch.ParamSpec) string {
	parts := make([]string, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		s := fmt.Sprintf("%s (%s)", f.Key, f.Type)
		if f.Required {
			s += "*"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
