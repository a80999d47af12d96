package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/boukath/cina/services/push_service/internal/config"
	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/oauth"
	"github.com/boukath/cina/services/push_service/internal/services"
	"github.com/boukath/cina/services/push_service/pkg/logger"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
)

type stack struct {
	cfg        *config.Config
	cred       *credentials.ServiceAccountCredential
	exchanger  *oauth.Exchanger
	dispatcher *services.NotificationDispatcher
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "pushctl",
		Short:        "Inspect and exercise the push notification pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newTokenCmd(&logLevel), newSendCmd(&logLevel))
	return root
}

func loadStack(logLevel string) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cred, err := credentials.Parse([]byte(cfg.ServiceAccountJSON))
	if err != nil {
		return nil, err
	}
	logr := logger.New(logLevel, cfg.LogFormat)
	exchanger := oauth.NewExchanger(cfg.TokenEndpoint, cfg.TokenExchangeTimeout, logr)
	provider := services.NewFCMProvider(cfg.FCMEndpoint, cred.ProjectIdentifier, cfg.ProviderTimeout, logr)
	dispatcher := services.NewNotificationDispatcher(cred, exchanger, provider, metrics.New(), logr,
		services.WithWebLink(cfg.WebLink),
	)
	return &stack{cfg: cfg, cred: cred, exchanger: exchanger, dispatcher: dispatcher}, nil
}

func newTokenCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Exchange the configured service account for an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadStack(*logLevel)
			if err != nil {
				return err
			}
			tok, err := s.exchanger.Exchange(cmd.Context(), s.cred)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "issuer:     %s\n", s.cred.Issuer)
			fmt.Fprintf(out, "token:      %s\n", logger.Redact(tok.Value))
			fmt.Fprintf(out, "type:       %s\n", tok.Type)
			fmt.Fprintf(out, "expires_at: %s (%s)\n", tok.ExpiresAt.Format(time.RFC3339), tok.Lifetime())
			return nil
		},
	}
}

func newSendCmd(logLevel *string) *cobra.Command {
	var (
		to    string
		title string
		body  string
		data  []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one notification to a device token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := parseData(data)
			if err != nil {
				return err
			}
			s, err := loadStack(*logLevel)
			if err != nil {
				return err
			}
			res, err := s.dispatcher.Dispatch(cmd.Context(), &models.PushNotificationRequest{
				RecipientToken: to,
				Title:          title,
				Body:           body,
				Data:           fields,
			})
			raw, merr := json.MarshalIndent(services.DeliveryResultFrom(res, err), "", "  ")
			if merr != nil {
				return merr
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient device token")
	cmd.Flags().StringVar(&title, "title", "", "notification title")
	cmd.Flags().StringVar(&body, "body", "", "notification body")
	cmd.Flags().StringArrayVar(&data, "data", nil, "data entry as key=value (repeatable)")
	return cmd
}

func parseData(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --data %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
