package root

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"serotonyl.ru/heartpoints/internal/middleware"
)

// newIssueTokenCmd выпускает токен API для отладки без сервиса идентификации.
func newIssueTokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token <user_id>",
		Short: "Выпустить токен HTTP API для пользователя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return errors.New("user_id должен быть положительным числом")
			}
			if secret == "" {
				return errors.New("нужен --secret или AUTH_SECRET")
			}

			token, err := middleware.NewAuth(secret).SignUserID(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("AUTH_SECRET", ""), "секрет подписи (по умолчанию AUTH_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "срок жизни токена")
	return cmd
}
