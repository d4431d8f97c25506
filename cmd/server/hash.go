package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/taskboard-api/internal/service/auth"
)

// hashPasswordCmd prints a bcrypt hash for seeding users directly in the
// database. The password is read from stdin when no argument is given so it
// stays out of shell history.
func hashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.NewBcryptHasher(cost).Hash(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	return cmd
}
