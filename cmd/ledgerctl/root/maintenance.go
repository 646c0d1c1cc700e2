package root

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Снять отметки с ежедневных и еженедельных задач, как это делает ночной cron",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			core, cleanup, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := core.Reconciler.ReconcileAll(ctx, core.Clock.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Сброшено задач: %d\n", n)
			return nil
		},
	}
}

func newSweepStreaksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-streaks",
		Short: "Обнулить прерванные серии ежедневных задач",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			core, cleanup, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := core.Ledger.SweepStreaks(ctx, core.Clock.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🔥 Обнулено серий: %d\n", n)
			return nil
		},
	}
}

func newClearUserCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "clear-user <user_id>",
		Short: "Обнулить статистику пользователя (нужен пароль администратора)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return errors.New("user_id должен быть положительным числом")
			}

			ctx := cmd.Context()
			core, cleanup, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// попытки из CLI учитываются под id 0
			if err := core.Admin.ClearUserData(ctx, 0, userID, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Статистика пользователя %d обнулена\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "пароль администратора")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
