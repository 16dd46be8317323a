package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/service"

	"github.com/spf13/cobra"
)

func newSendCmd(newClient func() *Client) *cobra.Command {
	var (
		file, text, templateID, at, category string
		to                                   []string
		allContacts, watch                   bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue a bulk send",
		Long: `Queue a bulk send from a recipient sheet, explicit numbers, a contact
category or every active contact. Sheet columns other than the phone become <column> values
for that recipient.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := sendOptions{
				File:        file,
				To:          to,
				Text:        text,
				TemplateID:  templateID,
				At:          at,
				CategoryID:  category,
				AllContacts: allContacts,
			}
			req, err := buildBulkRequest(opts, time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := newClient()
			res, err := c.SendBulk(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job %s queued: %d recipients, about %d min, starts %s\n",
				res.JobID, res.TotalRecipients, res.EstimatedTimeMinutes, res.ScheduledAt.Local().Format(time.DateTime))
			if watch {
				return watchJob(ctx, c, res.JobID, out, 2*time.Second)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "recipient sheet (.xlsx or .csv)")
	cmd.Flags().StringArrayVar(&to, "to", nil, "recipient number, repeatable")
	cmd.Flags().StringVarP(&text, "text", "t", "", "message text with <value> markers and {a|b} spintax")
	cmd.Flags().StringVar(&templateID, "template", "", "stored template id")
	cmd.Flags().StringVar(&at, "at", "", "start time, RFC 3339 or HH:MM (next occurrence)")
	cmd.Flags().StringVar(&category, "category", "", "send to the active contacts of a category id")
	cmd.Flags().BoolVar(&allContacts, "all-contacts", false, "send to every active contact")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow the job until it finishes")
	cmd.MarkFlagsMutuallyExclusive("text", "template")
	cmd.MarkFlagsOneRequired("text", "template")
	cmd.MarkFlagsMutuallyExclusive("category", "all-contacts")
	return cmd
}

type sendOptions struct {
	File        string
	To          []string
	Text        string
	TemplateID  string
	At          string
	CategoryID  string
	AllContacts bool
}

func buildBulkRequest(opts sendOptions, now time.Time) (service.BulkRequest, error) {
	req := service.BulkRequest{Text: opts.Text, TemplateID: opts.TemplateID, CategoryID: opts.CategoryID}

	if opts.File != "" {
		f, err := os.Open(opts.File)
		if err != nil {
			return req, err
		}
		defer f.Close()

		rows, err := helper.ReadRecipients(f, opts.File)
		if err != nil {
			return req, fmt.Errorf("%s: %w", opts.File, err)
		}
		for _, row := range rows {
			req.Recipients = append(req.Recipients, row.Phone)
			if len(row.Values) > 0 {
				if req.Values == nil {
					req.Values = make(map[string]map[string]string)
				}
				req.Values[row.Phone] = row.Values
			}
		}
		if len(req.Recipients) == 0 {
			return req, fmt.Errorf("%s: no recipients found", opts.File)
		}
	}
	req.Recipients = append(req.Recipients, opts.To...)

	switch {
	case len(req.Recipients) > 0 && (opts.AllContacts || opts.CategoryID != ""):
		return req, errors.New("--all-contacts and --category cannot be combined with --file or --to")
	case opts.AllContacts && opts.CategoryID != "":
		return req, errors.New("--all-contacts cannot be combined with --category")
	case len(req.Recipients) == 0 && !opts.AllContacts && opts.CategoryID == "":
		return req, errors.New("no recipients: use --file, --to, --category or --all-contacts")
	}

	if opts.At != "" {
		at, err := parseStart(opts.At, now)
		if err != nil {
			return req, err
		}
		req.ScheduledAt = &at
	}
	return req, nil
}

// parseStart accepts RFC 3339 or a local HH:MM, which resolves to its next
// occurrence after now.
func parseStart(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation("15:04", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: use RFC 3339 or HH:MM", s)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func newStatusCmd(newClient func() *Client) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show a dispatch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if watch {
				return watchJob(cmd.Context(), c, args[0], cmd.OutOrStdout(), 2*time.Second)
			}
			job, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow the job until it finishes")
	return cmd
}

func newCancelCmd(newClient func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a scheduled or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().CancelJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s cancelled\n", args[0])
			return nil
		},
	}
}

func newQRCmd(newClient func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "qr",
		Short: "Print the pairing QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qr, err := newClient().QR(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if qr.QR == "" {
				fmt.Fprintln(out, "session is already connected")
				return nil
			}
			art, err := helper.QRTerminal(qr.QR)
			if err != nil {
				return err
			}
			fmt.Fprint(out, art)
			fmt.Fprintln(out, "Scan with WhatsApp > Linked devices")
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [PASSWORD]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("empty password")
			}
			hash, err := helper.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

type jobGetter interface {
	Job(ctx context.Context, id string) (model.DispatchJob, error)
}

// watchJob polls until the job reaches a final state, printing each change.
// A failed job is returned as an error.
func watchJob(ctx context.Context, c jobGetter, id string, out io.Writer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return err
		}
		if key := fmt.Sprint(job.State, job.Success, job.Failure, job.Total); key != last {
			printJob(out, job)
			last = key
		}

		switch job.State {
		case dispatch.StateCompleted, dispatch.StateCancelled:
			return nil
		case dispatch.StateFailed:
			return fmt.Errorf("job %s failed: %s", id, job.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJob(out io.Writer, job model.DispatchJob) {
	fmt.Fprintf(out, "%s  %-9s  %d/%d sent, %d failed\n",
		job.ID, job.State, job.Success, job.Total, job.Failure)
}
