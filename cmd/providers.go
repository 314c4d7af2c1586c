package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-cli/internal/model"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage external provider settings",
	Long:  "Commands for listing providers and changing their enabled flag and API key.",
}

// -- providers list --

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers with masked credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListProviders(ctx)
		if err != nil {
			return eris.Wrap(err, "providers list")
		}
		formatProviders(os.Stdout, list)
		return nil
	},
}

// -- providers set --

var providersSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Enable or disable a provider and optionally set its API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		upd, err := providerUpdate(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.UpdateProvider(ctx, args[0], upd)
		if err != nil {
			return eris.Wrapf(err, "providers set %s", args[0])
		}
		formatProviders(os.Stdout, []model.ProviderSettings{*p})
		return nil
	},
}

// providerUpdate builds the update from flags. The stored key is kept unless
// --api-key is given; --api-key "" clears it.
func providerUpdate(cmd *cobra.Command) (model.ProviderUpdate, error) {
	enable, _ := cmd.Flags().GetBool("enable")
	disable, _ := cmd.Flags().GetBool("disable")
	if enable == disable {
		return model.ProviderUpdate{}, eris.New("exactly one of --enable or --disable is required")
	}

	upd := model.ProviderUpdate{Enabled: enable}
	if cmd.Flags().Changed("api-key") {
		key, _ := cmd.Flags().GetString("api-key")
		upd.APIKey = &key
	}
	return upd, nil
}

func formatProviders(out io.Writer, list []model.ProviderSettings) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tLABEL\tENABLED\tAPI KEY")
	_, _ = fmt.Fprintln(w, "---\t-----\t-------\t-------")
	for _, p := range list {
		m := p.Masked()
		key := m.APIKey
		if key == "" {
			key = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", m.Key, m.Label, m.Enabled, key)
	}
	_ = w.Flush()
}

func init() {
	providersSetCmd.Flags().Bool("enable", false, "enable the provider")
	providersSetCmd.Flags().Bool("disable", false, "disable the provider")
	providersSetCmd.Flags().String("api-key", "", "API key to store (empty clears it)")

	providersCmd.AddCommand(providersListCmd, providersSetCmd)
	rootCmd.AddCommand(providersCmd)
}
