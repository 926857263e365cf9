// Package cli implements sumctl, a local runner for the sum node.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/getsum-node/internal/sum"
)

// ErrDecodeFailed is returned after the report is printed when the payload
// could not be decoded, so callers can exit non-zero.
var ErrDecodeFailed = errors.New("payload decode failed")

type report struct {
	Outcome sum.Outcome     `json:"outcome"`
	Payload json.RawMessage `json:"payload"`
	Error   string      `json:"error,omitempty"`
}

type aggregateOptions struct {
	inputKey  string
	outputKey string
	file      string
}

// NewRootCommand builds the sumctl command tree reading payloads from in when
// no file is given.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sumctl",
		Short:         "Run the sum node against JSON payloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.AddCommand(newAggregateCommand())
	return root
}

func newAggregateCommand() *cobra.Command {
	opts := &aggregateOptions{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Sum the fields of a payload whose names start with --input-key",
		Example: `  echo '{"temp_1": 10, "temp_2": 20}' | sumctl aggregate --input-key temp_ --output-key tempSum
  sumctl aggregate --input-key temp_ --output-key tempSum --file payload.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.inputKey, "input-key", "", "field name prefix to sum")
	cmd.Flags().StringVar(&opts.outputKey, "output-key", "", "field name of the produced sum")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read the payload from this file instead of stdin")
	_ = cmd.MarkFlagRequired("input-key")
	_ = cmd.MarkFlagRequired("output-key")
	return cmd
}

func runAggregate(cmd *cobra.Command, opts *aggregateOptions) error {
	if opts.inputKey == "" || opts.outputKey == "" {
		return errors.New("--input-key and --output-key must not be empty")
	}

	payload, err := readPayload(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}

	result := sum.Aggregate(payload, opts.inputKey, opts.outputKey)
	rep := report{Outcome: result.Outcome}
	if result.Produced() {
		rep.Payload = json.RawMessage(result.Data)
	}
	if result.Err != nil {
		rep.Error = result.Err.Error()
	}

	data, err := sonic.ConfigStd.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if result.Outcome == sum.OutcomeDecodeError {
		return ErrDecodeFailed
	}
	return nil
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read payload from stdin: %w", err)
	}
	return data, nil
}
