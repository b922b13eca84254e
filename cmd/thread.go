package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chefbot/internal/config"
	"github.com/nextlevelbuilder/chefbot/internal/sessions"
	"github.com/nextlevelbuilder/chefbot/internal/threads"
)

func threadIDCmd() *cobra.Command {
	var guildID, dmChannelID string
	cmd := &cobra.Command{
		Use:   "thread-id [scopeKey]",
		Short: "Print the remote thread id derived for a conversation scope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := scopeKeyFromFlags(args, guildID, dmChannelID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), threads.DeriveID(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "Discord guild id")
	cmd.Flags().StringVar(&dmChannelID, "dm", "", "Discord DM channel id")
	return cmd
}

func threadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect and materialize remote agent threads",
	}
	cmd.AddCommand(threadEnsureCmd())
	cmd.AddCommand(threadListCmd())
	return cmd
}

func threadEnsureCmd() *cobra.Command {
	var guildID, dmChannelID string
	cmd := &cobra.Command{
		Use:   "ensure [scopeKey]",
		Short: "Resolve the remote thread for a scope, creating it if absent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr()
			key, err := scopeKeyFromFlags(args, guildID, dmChannelID)
			if err != nil {
				return err
			}
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if err := cfg.ValidateAgent(); err != nil {
				return err
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			if stores.Close != nil {
				defer stores.Close()
			}

			resolver := threads.NewResolver(newAgentClient(cfg), threads.WithThreadStore(stores.Threads))
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Agent.Timeout())
			defer cancel()
			id, err := resolver.Resolve(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "Discord guild id")
	cmd.Flags().StringVar(&dmChannelID, "dm", "", "Discord DM channel id")
	return cmd
}

func threadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remote threads recorded in the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr()
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if storeKind(cfg) == "memory" {
				return fmt.Errorf("no store configured (store.path or store.postgres_dsn); nothing is persisted")
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			records, err := stores.Threads.ListThreads(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCOPE\tTHREAD ID\tRECORDED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ScopeKey, r.ThreadID, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.MaskedCopy())
		},
	})
	return cmd
}

// scopeKeyFromFlags picks the scope key from exactly one of: a positional
// key, --guild, or --dm.
func scopeKeyFromFlags(args []string, guildID, dmChannelID string) (string, error) {
	n := 0
	key := ""
	if len(args) == 1 {
		n++
		key = args[0]
	}
	if guildID != "" {
		n++
		key = sessions.BuildGuildKey(sessions.PlatformDiscord, guildID)
	}
	if dmChannelID != "" {
		n++
		key = sessions.BuildDirectKey(sessions.PlatformDiscord, dmChannelID)
	}
	if n != 1 {
		return "", fmt.Errorf("provide exactly one of <scopeKey>, --guild or --dm")
	}
	if _, _, _, ok := sessions.ParseKey(key); !ok {
		fmt.Fprintf(os.Stderr, "warning: %q is not a recognised scope key; deriving anyway\n", key)
	}
	return key, nil
}
