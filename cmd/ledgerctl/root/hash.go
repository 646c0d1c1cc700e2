package root

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"serotonyl.ru/heartpoints/internal/features/admin"
)

func newHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [пароль]",
		Short: "Сгенерировать Argon2id-хеш для ADMIN_PASSWORD_HASH",
		Long: "Печатает хеш пароля администратора. Без аргумента пароль читается из stdin,\n" +
			"чтобы он не попал в историю shell.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("пароль не передан")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := admin.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	return cmd
}
