package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/larkrelay/larkrelay/internal/config"
	"github.com/larkrelay/larkrelay/internal/lark"
)

func probeCmd() *cobra.Command {
	var (
		accountID string
		timeout   time.Duration
		withBot   bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check account credentials against the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = os.Getenv("CONFIG_PATH")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			larkCfg := cfg.Channels.Lark
			if accountID == "" {
				accountID = lark.ResolveDefaultAccountID(larkCfg)
			}
			account := lark.ResolveAccount(larkCfg, accountID)
			if !account.Configured() {
				return fmt.Errorf("account %q has no app credentials", account.AccountID)
			}

			ctx := cmd.Context()
			result, err := lark.ProbeCredentials(ctx, account, timeout)
			if err != nil {
				if errors.Is(err, lark.ErrProbeTimeout) {
					return fmt.Errorf("probe timed out after %dms", result.ElapsedMs)
				}
				return err
			}

			output := map[string]any{
				"account_id": account.AccountID,
				"ok":         result.OK,
				"code":       result.Code,
				"elapsed_ms": result.ElapsedMs,
			}
			if result.Msg != "" {
				output["msg"] = result.Msg
			}
			if withBot && result.OK {
				bot, err := lark.DiscoverBot(ctx, account)
				if err != nil {
					output["bot_error"] = err.Error()
				} else {
					output["bot"] = bot
				}
			}
			encoded, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			if !result.OK {
				return fmt.Errorf("credentials rejected: %s (code: %d)", result.Msg, result.Code)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&accountID, "account", "a", "", "account id (default: configured default account)")
	cmd.Flags().DurationVar(&timeout, "timeout", lark.DefaultProbeTimeout, "probe request timeout")
	cmd.Flags().BoolVar(&withBot, "bot-info", false, "also fetch the bot identity")
	return cmd
}
