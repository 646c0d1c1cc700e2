// Package root содержит команды ledgerctl: хеш пароля администратора
// и разовые запуски фоновых задач без ожидания cron.
package root

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/heartpoints/internal/app"
	"serotonyl.ru/heartpoints/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Служебные команды heartpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.ErrOrStderr())
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, "подробные логи")

	cmd.AddCommand(
		newHashPasswordCmd(),
		newReconcileCmd(),
		newSweepStreaksCmd(),
		newClearUserCmd(),
		newIssueTokenCmd(),
	)
	return cmd
}

// Execute запускает ledgerctl.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌ "+err.Error())
		os.Exit(1)
	}
}

// openCore подключается к БД по переменным окружения сервиса.
func openCore(ctx context.Context) (*app.Core, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	core, err := app.NewCore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return core, core.Close, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
