package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/email"
	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

var (
	emThreshold  int
	emExportPath string
	emReflag     bool
	emTop        int
)

var emailCmd = &cobra.Command{
	Use:   "email <file|url|->",
	Short: "Thread a mailbox export and score priority and spam",
	Long: `Reads an mbox/eml file or a table with From, To and Subject columns, groups messages
into threads, computes response times, priority and spam scores. With --reflag the input
must already carry a Spam_Score column and only Is_Spam is recomputed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(cmd.Context(), cmd, args[0], "")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if emReflag {
			tok, err := doc.Tokenize()
			if err != nil {
				return err
			}
			threshold := cfg.Email.SpamThreshold
			if emThreshold >= 0 {
				threshold = emThreshold
			}
			t, flagged, err := email.Reflag(tok.Table, threshold)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ %d of %d messages at or above spam threshold %d\n", flagged, t.NumRows(), threshold)
			if emExportPath != "" {
				return exportCSV(cmd, emExportPath, t)
			}
			return nil
		}

		doc.Mailbox = true
		res, err := pipeline.Run(cmd.Context(), doc, pipeline.Options{
			Organize: organize.Options{Email: emailConfig(emThreshold)},
			Impute:   cfg.Impute,
			Session:  openSession(cmd),
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		if res.Verdict.Kind != structure.Email {
			return fmt.Errorf("%s does not look like email data (detected %s); need at least two of From, To, Subject", doc.Name, res.Verdict.Kind)
		}
		if err := res.Organized.Err; err != nil {
			return err
		}
		if res.Organized.Email == nil {
			return fmt.Errorf("%s: mailbox could not be organized", doc.Name)
		}
		printMailbox(out, res.Organized.Email, res.Final, emTop)
		if emExportPath != "" {
			return exportCSV(cmd, emExportPath, res.Final)
		}
		return nil
	},
}

func printMailbox(w io.Writer, s *email.Summary, t *table.Table, top int) {
	fmt.Fprintf(w, "Messages: %d in %d threads (largest %d)\n", s.Messages, s.Threads, s.LargestThread)
	fmt.Fprintf(w, "Replies: %d, average response %.2f h\n", s.Replies, s.AvgResponseHours)
	fmt.Fprintf(w, "Flagged as spam: %d\n", s.SpamCount)
	if len(s.TopSenders) > 0 {
		fmt.Fprintln(w, "Top senders:")
		for _, sc := range s.TopSenders {
			fmt.Fprintf(w, "  %-40s %d\n", sc.Sender, sc.Count)
		}
	}
	if top <= 0 {
		return
	}
	subj, prio, spam := t.IndexFold("Subject"), t.Index(email.ColPriority), t.Index(email.ColIsSpam)
	if prio < 0 {
		return
	}
	ranked := t.SortStable(func(a, b int) bool {
		pa, _ := strconv.Atoi(t.Cell(a, prio))
		pb, _ := strconv.Atoi(t.Cell(b, prio))
		return pa > pb
	})
	fmt.Fprintf(w, "Highest priority:\n")
	for i := 0; i < ranked.NumRows() && i < top; i++ {
		subject := ""
		if subj >= 0 {
			subject = ranked.Cell(i, subj)
		}
		flag := ""
		if spam >= 0 && ranked.Cell(i, spam) == "true" {
			flag = " [spam]"
		}
		fmt.Fprintf(w, "  %3s  %s%s\n", ranked.Cell(i, prio), subject, flag)
	}
}

func init() {
	rootCmd.AddCommand(emailCmd)
	emailCmd.Flags().IntVar(&emThreshold, "threshold", -1, "spam threshold 0-100 (default from config)")
	emailCmd.Flags().StringVar(&emExportPath, "export", "", "write the organized mailbox table as CSV")
	emailCmd.Flags().BoolVar(&emReflag, "reflag", false, "recompute Is_Spam from an existing Spam_Score column")
	emailCmd.Flags().IntVar(&emTop, "top", 5, "show the N highest priority messages (0 disables)")
}
