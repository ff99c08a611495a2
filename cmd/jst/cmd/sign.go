package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
)

// signature is the printed form of a signed parameter set.
type signature struct {
	Params map[string]string `json:"params" yaml:"params"`
	Sign   string            `json:"sign"   yaml:"sign"`
}

func signCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sign key=value...",
		Short: "Compute the signature of a parameter set",
		Long: "sign prints the MD5 signature the open platform expects for the\n" +
			"given parameters, using the configured app secret. A sign\n" +
			"parameter, if given, is excluded.",
		Example: "  jst sign app_key=abc timestamp=1700000000 'biz={\"page_index\":1}'",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			delete(params, jushuitan.FieldSign)
			if err := a.requireSecret(cmd.ErrOrStderr()); err != nil {
				return err
			}

			out := signature{Params: params, Sign: jushuitan.Sign(a.cfg.Jushuitan.AppSecret, params)}

			fields := make([]field, 0, len(params)+1)
			for _, k := range sortedKeys(params) {
				fields = append(fields, field{Key: k, Value: params[k]})
			}
			fields = append(fields, field{Key: jushuitan.FieldSign, Value: out.Sign})

			return a.print(cmd.OutOrStdout(), out, fields)
		},
	}
}

func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", arg)
		}
		params[k] = v
	}
	return params, nil
}
