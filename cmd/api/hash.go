package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	pkgauth "github.com/BradenHooton/carecheck/pkg/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Read an admin password from stdin and print its bcrypt hash",
	Long: `Reads one line from stdin, checks it against the admin password policy and
prints a bcrypt hash suitable for CARECHECK_ADMIN_PASSWORD_HASH or the bundle file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no password on stdin")
		}
		password := strings.TrimRight(line, "\r\n")

		if err := pkgauth.ValidatePassword(password); err != nil {
			return err
		}

		hash, err := pkgauth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
