package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/invoice"
)

const dateLayout = "2006-01-02"

// InvoiceNextOptions holds flags for invoice next.
type InvoiceNextOptions struct {
	*RootOptions
	Date string
}

// InvoiceNextResult is the output of invoice next.
type InvoiceNextResult struct {
	Day  string `json:"day"`
	Next string `json:"next"`
}

func (r InvoiceNextResult) String() string {
	return r.Next
}

// InvoiceParseResult is the output of invoice parse.
type InvoiceParseResult struct {
	Number     string `json:"number"`
	Prefix     string `json:"prefix"`
	Day        string `json:"day"`
	Seq        int    `json:"seq,omitempty"`
	Token      string `json:"token,omitempty"`
	Sequential bool   `json:"sequential"`
}

func (r InvoiceParseResult) String() string {
	if r.Sequential {
		return fmt.Sprintf("%s: prefix=%s day=%s seq=%d", r.Number, r.Prefix, r.Day, r.Seq)
	}
	return fmt.Sprintf("%s: prefix=%s day=%s token=%s", r.Number, r.Prefix, r.Day, r.Token)
}

// NewInvoiceCommand creates the invoice command group.
func NewInvoiceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Inspect invoice numbering",
		Long: `Inspect day-scoped invoice numbers of the form PREFIX-YYYYMMDD-NNNN.

Examples:
  possync invoice next
  possync invoice next --date 2025-01-01
  possync invoice parse FAC-20250101-0042`,
	}

	cmd.AddCommand(newInvoiceNextCommand(rootOpts))
	cmd.AddCommand(newInvoiceParseCommand(rootOpts))

	return cmd
}

func newInvoiceNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvoiceNextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the number the next payment would receive",
		Long: `Read the highest invoice number issued for a day from the remote store
and print the one after it. Nothing is written; a concurrent payment may
take the number first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoiceNext(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "business day as YYYY-MM-DD (default today in invoice.timezone)")

	return cmd
}

func runInvoiceNext(opts *InvoiceNextOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid invoice timezone", err)
	}

	day := time.Now().In(loc)
	if opts.Date != "" {
		day, err = time.ParseInLocation(dateLayout, opts.Date, loc)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --date", err)
		}
	}

	gw, err := connectRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	invOpts, err := cfg.InvoiceOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid invoice settings", err)
	}
	next, err := invoice.NewAllocator(gw, invOpts...).Next(ctx, day)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compute next invoice number", err)
	}

	return newFormatter(opts.RootOptions, cmd).Success(InvoiceNextResult{
		Day:  day.Format(dateLayout),
		Next: next,
	})
}

func newInvoiceParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "parse <number>",
		Short:         "Split an invoice number into its parts",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := invoice.Parse(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid invoice number", err)
			}
			return newFormatter(rootOpts, cmd).Success(InvoiceParseResult{
				Number:     n.String(),
				Prefix:     n.Prefix,
				Day:        n.Day,
				Seq:        n.Seq,
				Token:      n.Token,
				Sequential: n.Token == "",
			})
		},
	}
}
