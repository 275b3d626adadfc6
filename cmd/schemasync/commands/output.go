package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/schemasync/schemasync/pkg/stores"
	"github.com/schemasync/schemasync/pkg/syncer"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportItem is the JSON view of one report item.
type reportItem struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind,omitempty"`
	Alias   string   `json:"alias,omitempty"`
	Change  string   `json:"change"`
	Changes int      `json:"changes"`
	Issues  []string `json:"issues,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func printReport(w io.Writer, report *syncer.Report) error {
	if jsonOutput {
		items := make([]reportItem, 0, len(report.Items))
		for _, item := range report.Items {
			ri := reportItem{
				Path:    item.Path,
				Kind:    string(item.Result.Kind),
				Alias:   item.Result.Alias,
				Change:  string(item.Result.Change),
				Changes: len(item.Result.Changes),
			}
			for _, issue := range item.Result.Issues {
				ri.Issues = append(ri.Issues, issue.Error())
			}
			if item.Result.Err != nil {
				ri.Error = item.Result.Err.Error()
			}
			items = append(items, ri)
		}
		return printJSON(w, map[string]interface{}{
			"run_id":    report.RunID,
			"direction": report.Direction,
			"status":    report.Status,
			"dry_run":   report.DryRun,
			"items":     items,
		})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANGE\tKIND\tALIAS\tCHANGES\tPATH")
	for _, item := range report.Items {
		res := item.Result
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", res.Change, res.Kind, res.Alias, len(res.Changes), item.Path)
		for _, issue := range res.Issues {
			fmt.Fprintf(tw, "\t\t\t\t  issue: %s\n", issue.Error())
		}
		if res.Err != nil {
			fmt.Fprintf(tw, "\t\t\t\t  error: %s\n", res.Err.Error())
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total, changed, failed, issues := report.Counts()
	prefix := ""
	if report.DryRun {
		prefix = "[dry run] "
	}
	_, err := fmt.Fprintf(w, "\n%s%s %s: %d entities, %d changed, %d failed, %d issues (run %s)\n",
		prefix, report.Direction, report.Status, total, changed, failed, issues, report.RunID)
	return err
}

func printRuns(w io.Writer, runs []*stores.SyncRun) error {
	if jsonOutput {
		return printJSON(w, runs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDIRECTION\tSTATUS\tTOTAL\tCHANGED\tFAILED\tSTARTED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.Direction, run.Status, run.Total, run.Changed, run.Failed,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
