package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/ops"
)

// QueueOptions holds flags for the queue command.
type QueueOptions struct {
	*RootOptions
	Database string
	Order    string
}

// QueueEntry is one pending operation.
type QueueEntry struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Kind      ops.Kind  `json:"kind"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// QueueResult is the output of the queue command.
type QueueResult struct {
	Operations []QueueEntry `json:"operations"`
	Total      int          `json:"total"`
}

// RenderText implements TextRenderer.
func (r QueueResult) RenderText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No pending operations.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tKIND\tORDER\tATTEMPTS\tLAST ERROR")
	for _, e := range r.Operations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", e.Seq, e.ID, e.Kind, e.OrderID, e.Attempts, e.LastError)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d pending\n", r.Total)
	return err
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List operations waiting to sync",
		Long: `List the operations in the local log, in the order they will be applied.

The head of the queue is the first line. If it has attempts and an error,
it is what the terminal is stuck on.

Examples:
  possync queue --db ./till-1.db
  possync queue --order ORD-1042 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the local operation log (overrides store.path)")
	cmd.Flags().StringVar(&opts.Order, "order", "", "only show operations for this order")

	return cmd
}

func runQueue(opts *QueueOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	path, err := storePath(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	st, err := openExistingStore(path)
	if err != nil {
		return err
	}
	defer st.Close()

	var list []ops.Operation
	if opts.Order != "" {
		list, err = st.ForOrder(ctx, opts.Order)
	} else {
		list, err = st.GetAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read operation log", err)
	}

	result := QueueResult{Operations: make([]QueueEntry, 0, len(list)), Total: len(list)}
	for _, op := range list {
		result.Operations = append(result.Operations, QueueEntry{
			Seq:       op.Seq,
			ID:        op.ID,
			Kind:      op.Kind(),
			OrderID:   op.OrderID,
			CreatedAt: op.CreatedAt,
			Attempts:  op.Attempts,
			LastError: op.LastError,
		})
	}
	return newFormatter(opts.RootOptions, cmd).Success(result)
}
