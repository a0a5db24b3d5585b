package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/colloquy/pkg/settings"
	"github.com/go-go-golems/colloquy/pkg/store"
)

var errBadCredentials = errors.New("invalid email or password")

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.PersistentFlags().String("email", "", "Account email")
	cmd.PersistentFlags().String("password", "", "Account password (read from stdin when empty)")
	cmd.AddCommand(newUserCreateCommand(), newUserCheckCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an account with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserStore(cmd, func(st store.UserStore, email, password string) error {
				u, err := createUser(cmd.Context(), st, email, password)
				if err != nil {
					return err
				}
				log.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("User created")
				_, err = fmt.Fprintln(cmd.OutOrStdout(), u.ID)
				return err
			})
		},
	}
}

func newUserCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify an account's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserStore(cmd, func(st store.UserStore, email, password string) error {
				u, err := checkUser(cmd.Context(), st, email, password)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), u.ID)
				return err
			})
		},
	}
}

func withUserStore(cmd *cobra.Command, fn func(st store.UserStore, email, password string) error) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		var err error
		if password, err = readPassword(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	s, err := settings.Load(viper.GetViper())
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), s.Database.Driver, s.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()
	return fn(st, email, password)
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func createUser(ctx context.Context, st store.UserStore, email, password string) (store.User, error) {
	email = strings.TrimSpace(email)
	if password == "" {
		return store.User{}, errors.New("password must not be empty")
	}
	existing, err := st.GetUser(ctx, email)
	if err != nil {
		return store.User{}, err
	}
	if len(existing) > 0 {
		return store.User{}, errors.Errorf("user %s already exists", email)
	}
	return st.CreateUser(ctx, email, password)
}

func checkUser(ctx context.Context, st store.UserStore, email, password string) (store.User, error) {
	users, err := st.GetUser(ctx, strings.TrimSpace(email))
	if err != nil {
		return store.User{}, err
	}
	if len(users) == 0 || !store.CheckPassword(users[0], password) {
		return store.User{}, errBadCredentials
	}
	return users[0], nil
}
