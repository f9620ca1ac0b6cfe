package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/splitwise-relay/pkg/state"
)

// NewStateCommand groups helpers for inspecting OAuth state tokens with the
// configured SPLITWISE_STATE_SECRET.
func NewStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Sign or verify OAuth state tokens",
	}
	cmd.AddCommand(newStateSignCommand(), newStateVerifyCommand())
	return cmd
}

func newStateSignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sign",
		Short: "Print a state token bound to the current time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, rt, err := signerFromRuntime(cmd)
			if err != nil {
				return err
			}
			token, err := signer.Sign(signer.NewPayload())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), token)
			return nil
		},
	}
}

func newStateVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a state token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, rt, err := signerFromRuntime(cmd)
			if err != nil {
				return err
			}
			payload, err := signer.Verify(args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(rt.Writer())
			encoder.SetIndent("", "  ")
			return encoder.Encode(struct {
				state.Payload
				IssuedAt string `json:"issuedAt"`
			}{
				Payload:  payload,
				IssuedAt: payload.IssuedAt().UTC().Format(time.RFC3339),
			})
		},
	}
}

func signerFromRuntime(cmd *cobra.Command) (*state.Signer, *runtimeState, error) {
	rt, err := getRuntime(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := rt.Config()
	if err != nil {
		return nil, nil, err
	}
	return state.NewSigner([]byte(cfg.Splitwise.StateSecret)), rt, nil
}
