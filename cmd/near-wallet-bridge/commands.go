package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/cmd/near-wallet-bridge/config"
	nwb "github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/contract"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/helpers"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/networks"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/spf13/cobra"
)

type cli struct {
	build   nwb.BuildInfo
	jsonOut bool

	// loadConfig is swapped in tests.
	loadConfig func() (*config.Config, error)
}

type statusOutput struct {
	Connected   bool   `json:"connected"`
	AccountID   string `json:"accountId,omitempty"`
	State       string `json:"state"`
	Environment string `json:"environment"`
}

type mintOutput struct {
	contract.MintResult
	DepositNEAR string `json:"depositNear"`
}

func newRootCmd(build nwb.BuildInfo) *cobra.Command {
	c := &cli{build: build, loadConfig: config.Load}

	root := &cobra.Command{
		Use:           "near-wallet-bridge",
		Short:         "Local bridge between NEAR dApps and HOT Wallet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON output even on a terminal")

	root.AddCommand(
		c.serveCmd(),
		c.statusCmd(),
		c.connectCmd(),
		c.disconnectCmd(),
		c.mintCmd(),
		c.networksCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nwb.Run(cmd.Context(), c.build)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted wallet session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *nwb.Runtime) error {
				sess := rt.Bridge.GetStatus(cmd.Context())
				out := statusOutput{
					Connected:   sess.Connected,
					AccountID:   sess.AccountID,
					State:       rt.Bridge.State().String(),
					Environment: rt.Bridge.Environment().String(),
				}
				return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
					if !out.Connected {
						_, err := fmt.Fprintf(w, "not connected (%s)\n", out.Environment)
						return err
					}
					_, err := fmt.Fprintf(w, "connected as %s (%s)\n", out.AccountID, out.Environment)
					return err
				})
			})
		},
	}
}

func (c *cli) connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Sign in with HOT Wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *nwb.Runtime) error {
				if err := rt.UI.Connect(cmd.Context()); err != nil {
					return err
				}
				st := rt.UI.Snapshot()
				return c.print(cmd.OutOrStdout(), st, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "connected as %s on %s\n", st.AccountID, st.Network)
					return err
				})
			})
		},
	}
}

func (c *cli) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Sign out and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *nwb.Runtime) error {
				rt.UI.Disconnect(cmd.Context())
				return c.print(cmd.OutOrStdout(), rt.UI.Snapshot(), func(w io.Writer) error {
					_, err := fmt.Fprintln(w, "disconnected")
					return err
				})
			})
		},
	}
}

func (c *cli) mintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an NFT through the proxy contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m contract.MintMetadata
			m.Title, _ = cmd.Flags().GetString("title")
			m.Description, _ = cmd.Flags().GetString("description")
			m.Media, _ = cmd.Flags().GetString("media")
			m.Reference, _ = cmd.Flags().GetString("reference")

			if m.Title == "" {
				title, err := helpers.PromptRequired("Title")
				if err != nil {
					return err
				}
				m.Title = title
			}

			return c.withRuntime(cmd.Context(), func(rt *nwb.Runtime) error {
				res, err := rt.UI.Mint(cmd.Context(), m)
				if err != nil {
					return err
				}
				out := mintOutput{MintResult: res, DepositNEAR: contract.DepositNEAR()}
				return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "minted token %s (tx %s, deposit %s NEAR)\n",
						out.TokenID, out.TransactionHash, out.DepositNEAR)
					return err
				})
			})
		},
	}
	cmd.Flags().String("title", "", "token title")
	cmd.Flags().String("description", "", "token description")
	cmd.Flags().String("media", "", "media URL")
	cmd.Flags().String("reference", "", "reference URL")
	return cmd
}

func (c *cli) networksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Inspect and manage NEAR networks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cfg, err := c.openNetworks(cmd.Context())
			if err != nil {
				return err
			}
			nets, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), nets, func(w io.Writer) error {
				return writeNetworks(w, nets, cfg.Wallet.DefaultNetwork)
			})
		},
	}

	var added networks.NetworkConfig
	var rpcURL string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a NEAR network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := c.openNetworks(cmd.Context())
			if err != nil {
				return err
			}
			n := added
			n.Name = args[0]
			if rpcURL != "" {
				n.RPCs = []networks.RPC{{Name: args[0], URL: rpcURL}}
			}
			saved, err := m.AddNetwork(cmd.Context(), n)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), saved, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "added network %s (%s)\n", saved.Name, saved.NetworkID)
				return err
			})
		},
	}
	add.Flags().StringVar(&added.NetworkID, "network-id", "", "chain id reported by the network (defaults to the name)")
	add.Flags().StringVar(&rpcURL, "rpc", "", "RPC endpoint URL")
	add.Flags().StringVar(&added.Explorer, "explorer", "", "block explorer URL")
	add.Flags().StringVar(&added.WalletURL, "wallet-url", "", "wallet URL for this network")

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a network added with 'networks add'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cfg, err := c.openNetworks(cmd.Context())
			if err != nil {
				return err
			}
			name := strings.ToLower(strings.TrimSpace(args[0]))
			// Configured networks are restored on every start.
			if _, ok := cfg.Networks[name]; ok {
				return errors.Newf("network %q comes from the config file", name)
			}
			if err := m.RemoveNetwork(cmd.Context(), name); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"removed": name}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "removed network %s\n", name)
				return err
			})
		},
	}

	check := &cobra.Command{
		Use:   "check <rpc-url>",
		Short: "Query a NEAR RPC endpoint for its chain id and head",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := networks.CheckRPC(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: chain %s at block %d\n", res.RPCURL, res.ChainID, res.LatestBlockHeight)
				return err
			})
		},
	}

	cmd.AddCommand(list, check, add, remove)
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.print(cmd.OutOrStdout(), c.build, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "near-wallet-bridge %s (commit %s, built %s)\n",
					c.build.Version, c.build.Commit, c.build.BuildDate)
				return err
			})
		},
	}
}

func (c *cli) withRuntime(ctx context.Context, fn func(rt *nwb.Runtime) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	rt, err := nwb.NewRuntime(ctx, cfg, nwb.RuntimeOptions{ApprovalOut: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Error("runtime close failed", "error", closeErr)
		}
	}()
	return fn(rt)
}

// openNetworks opens the on-disk registry merged with the configured networks.
func (c *cli) openNetworks(ctx context.Context) (*networks.Manager, *config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	m, err := networks.NewManager()
	if err != nil {
		return nil, nil, err
	}
	if err := m.EnsureFromConfig(ctx, cfg.Networks); err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// print writes JSON when asked to or when stdout is not a terminal.
func (c *cli) print(w io.Writer, v any, human func(io.Writer) error) error {
	asJSON := c.jsonOut
	if f, ok := w.(*os.File); !ok || !helpers.IsTerminal(f) {
		asJSON = true
	}
	return helpers.WriteOutput(w, asJSON, v, human)
}

func writeNetworks(w io.Writer, nets []networks.NetworkConfig, active string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tNETWORK ID\tRPC\tEXPLORER")
	for _, n := range nets {
		name := n.Name
		if name == active {
			name += " *"
		}
		rpc := ""
		if len(n.RPCs) > 0 {
			rpc = n.RPCs[0].URL
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, n.NetworkID, rpc, n.Explorer)
	}
	return tw.Flush()
}
