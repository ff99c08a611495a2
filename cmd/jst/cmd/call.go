package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func callCmd(a *app) *cobra.Command {
	var (
		method  string
		biz     string
		bizFile string
	)

	cmd := &cobra.Command{
		Use:   "call <path>",
		Short: "Send a signed business request",
		Long: "call signs biz with the app secret and sends it to path with the\n" +
			"cached access token. Use --biz-file - to read biz from stdin.",
		Example: "  jst call /open/orders/single/query --biz '{\"page_index\":1,\"page_size\":50}'\n" +
			"  jst call /open/shops/query --biz-file shops.json -o json",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readBiz(cmd.InOrStdin(), biz, bizFile)
			if err != nil {
				return err
			}

			comp, err := a.component(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := comp.Request(cmd.Context(), method, args[0], payload)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), res, resultFields(res))
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP method")
	cmd.Flags().StringVar(&biz, "biz", "", "business parameters as a JSON document")
	cmd.Flags().StringVar(&bizFile, "biz-file", "", "file holding the business parameters (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("biz", "biz-file")

	return cmd
}

// readBiz returns the business parameters as raw JSON, or nil when none
// were given.
func readBiz(stdin io.Reader, biz, bizFile string) (json.RawMessage, error) {
	raw := []byte(biz)

	switch bizFile {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading biz from stdin: %w", err)
		}
		raw = data
	default:
		data, err := os.ReadFile(bizFile) //nolint:gosec // path from trusted CLI flag
		if err != nil {
			return nil, fmt.Errorf("reading biz file: %w", err)
		}
		raw = data
	}

	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("biz is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
