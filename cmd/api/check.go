package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justsurfingit/studentva/internal/auth"
	"github.com/justsurfingit/studentva/internal/services"
)

func newCheckCmd() *cobra.Command {
	check := &cobra.Command{
		Use:   "check",
		Short: "Verify notification channel credentials",
	}
	check.AddCommand(newCheckEmailCmd(), newCheckTelegramCmd())
	return check
}

func newCheckEmailCmd() *cobra.Command {
	var noSend bool
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Connect to the mail transport and send a test email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Account: %s\nTransport: %s\n", orUnset(cfg.Email.User), cfg.Email.Transport)
			if !cfg.Email.Configured() {
				return services.ErrEmailNotConfigured
			}
			transport, err := newEmailTransport(ctx, cfg.Email)
			if err != nil {
				return err
			}
			svc := services.NewEmailService(cfg.Email, transport)
			if err := svc.Verify(ctx); err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}
			fmt.Fprintln(out, "✅ Connection verified")
			if noSend {
				return nil
			}
			if err := svc.SendTest(ctx); err != nil {
				return fmt.Errorf("send test email: %w", err)
			}
			fmt.Fprintf(out, "✅ Test email sent to %s\n", cfg.Email.Recipient())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSend, "no-send", false, "only verify the connection")
	return cmd
}

func newCheckTelegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Look up the bot and send a test message to the chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			out := cmd.OutOrStdout()
			svc := services.NewTelegramService(cfg.Telegram)
			bot, err := svc.GetMe(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Bot: %s (@%s)\n", bot.FirstName, bot.Username)
			if cfg.Telegram.ChatID == "" {
				return errors.New("TELEGRAM_CHAT_ID is not set")
			}
			if err := svc.SendTest(ctx); err != nil {
				return fmt.Errorf("send test message: %w", err)
			}
			fmt.Fprintf(out, "✅ Test message sent to chat %s\n", cfg.Telegram.ChatID)
			return nil
		},
	}
}

func newGmailAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail-auth",
		Short: "Authorize Gmail API sending and save the token file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			oauthCfg, err := auth.OAuthConfig(cfg.Email.GmailCredentialsFile)
			if err != nil {
				return err
			}
			tok, err := auth.TokenFromWeb(cmd.Context(), oauthCfg, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := auth.SaveToken(cfg.Email.GmailTokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Email.GmailTokenFile)
			return nil
		},
	}
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
