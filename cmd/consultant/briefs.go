package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func briefsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "briefs",
		Short: "List archived project briefs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openArchive(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rows, err := st.ListBriefs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("no briefs archived yet")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tNAME\tCREATED\tCOST\tCYCLES\tUNRESOLVED")
			for _, b := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%.0f\t%d\t%d\n",
					b.SessionID, displayName(b.Name), b.CreatedAt.Local().Format("2006-01-02 15:04"),
					b.EstimatedCost, b.Cycles, b.Unresolved)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of briefs to list (0 for all)")
	cmd.AddCommand(briefsShowCmd())
	return cmd
}

func briefsShowCmd() *cobra.Command {
	var (
		raw     bool
		journal bool
	)
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print an archived brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openArchive(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			b, err := st.GetBrief(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := b.Markdown
			if !raw {
				if render := markdownRenderer(); render != nil {
					if rendered, err := render(b.Markdown); err == nil {
						out = rendered
					}
				}
			}
			fmt.Println(out)

			if !journal {
				return nil
			}
			ts, err := st.Journal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range ts {
				fmt.Printf("%s  %s -> %s  %s\n", t.At.Local().Format("15:04:05"), t.From, t.To, t.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal rendering")
	cmd.Flags().BoolVar(&journal, "journal", false, "also print the state transitions of the session")
	return cmd
}

func displayName(name string) string {
	if name == "" {
		return "Untitled Project"
	}
	return name
}
