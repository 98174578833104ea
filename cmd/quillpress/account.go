// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/quillpress/quillpress/internal/account"
	"github.com/quillpress/quillpress/pkg/errutil"
)

// NewAccountCmd creates the account command group.
// Passwords are read from stdin, one per line, so they stay out of shell history.
func NewAccountCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Register, authenticate and manage account passwords",
	}

	cmd.AddCommand(newRegisterCmd(deps))
	cmd.AddCommand(newLoginCmd(deps))
	cmd.AddCommand(newChangePasswordCmd(deps))
	cmd.AddCommand(newRequestResetCmd(deps))
	cmd.AddCommand(newCompleteResetCmd(deps))
	cmd.AddCommand(newPermissionsCmd(deps))

	return cmd
}

func newRegisterCmd(deps *Deps) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the administrator account",
		Long: `Register the single administrator account. Fails once any account exists.
Reads the password from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(svc *account.Service) error {
				lines, err := readLines(cmd, "password")
				if err != nil {
					return err
				}
				profile, err := svc.Register(cmd.Context(), account.Registration{
					Name:     name,
					Email:    email,
					Password: lines[0],
				})
				if err != nil {
					return err //nolint:wrapcheck // service errors are already coded
				}
				return printJSON(cmd, profile)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag is defined above
	return cmd
}

func newLoginCmd(deps *Deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a password and update the lockout status",
		Long: `Authenticate an account. A wrong password moves the account one step
towards lockout. Reads the password from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(svc *account.Service) error {
				lines, err := readLines(cmd, "password")
				if err != nil {
					return err
				}
				profile, err := svc.Authenticate(cmd.Context(), email, lines[0])
				if err != nil {
					if remaining, ok := account.RemainingAttempts(err); ok {
						cmd.PrintErrf("%d attempt(s) remaining before lockout\n", remaining)
					}
					return err //nolint:wrapcheck // service errors are already coded
				}
				return printJSON(cmd, profile)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag is defined above
	return cmd
}

func newChangePasswordCmd(deps *Deps) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of an account",
		Long:  `Change a password. Reads the current password, the new password and its confirmation from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(svc *account.Service) error {
				lines, err := readLines(cmd, "current password", "new password", "confirmation")
				if err != nil {
					return err
				}
				profile, err := svc.ChangePassword(cmd.Context(), id, lines[0], lines[1], lines[2])
				if err != nil {
					return err //nolint:wrapcheck // service errors are already coded
				}
				cmd.PrintErrln("Password changed")
				return printJSON(cmd, profile)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "account id")
	_ = cmd.MarkFlagRequired("id") //nolint:errcheck // flag is defined above
	return cmd
}

func newRequestResetCmd(deps *Deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "request-reset",
		Short: "Issue a password reset token",
		Long: `Issue a password reset token and print it to stdout. Delivering it to the
account owner is left to the caller.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(svc *account.Service) error {
				token, err := svc.RequestReset(cmd.Context(), email, deps.Clock())
				if err != nil {
					return err //nolint:wrapcheck // service errors are already coded
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), token); err != nil {
					return oops.Code("OUTPUT_FAILED").Wrap(err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag is defined above
	return cmd
}

func newCompleteResetCmd(deps *Deps) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "complete-reset",
		Short: "Set a new password with a reset token",
		Long: `Set a new password with a reset token and unlock the account.
Reads the new password and its confirmation from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(svc *account.Service) error {
				lines, err := readLines(cmd, "new password", "confirmation")
				if err != nil {
					return err
				}
				profile, err := svc.CompleteReset(cmd.Context(), token, lines[0], lines[1], deps.Clock())
				if err != nil {
					return err //nolint:wrapcheck // service errors are already coded
				}
				cmd.PrintErrln("Password reset")
				return printJSON(cmd, profile)
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "reset token")
	_ = cmd.MarkFlagRequired("token") //nolint:errcheck // flag is defined above
	return cmd
}

func newPermissionsCmd(deps *Deps) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the effective permissions of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(svc *account.Service) error {
				perms, err := svc.EffectivePermissions(cmd.Context(), id)
				if err != nil {
					return err //nolint:wrapcheck // service errors are already coded
				}
				return printPermissions(cmd, perms)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "account id")
	_ = cmd.MarkFlagRequired("id") //nolint:errcheck // flag is defined above
	return cmd
}

// withService wires an account.Service from config and runs fn with it.
// Infrastructure failures are logged with their code and context before being returned.
func withService(cmd *cobra.Command, deps *Deps, fn func(*account.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if err := cfg.RequireResetSecret(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	logger := newLogger(cmd, cfg)

	hasher, err := account.NewHasher(account.Algorithm(cfg.Auth.PasswordAlgorithm), cfg.Auth.BcryptCost)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	codec, err := account.NewResetTokenCodec(cfg.Auth.ResetSecret)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	pool, err := deps.PoolFactory(cmd.Context(), cfg.Database.URL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	svc, err := account.NewService(deps.RepositoryFactory(pool), hasher, codec,
		account.WithLogger(logger),
		account.WithAvatarLookup(deps.AvatarFactory(cfg.Avatar)),
		account.WithResetTokenTTL(cfg.Auth.ResetTTL),
		account.WithAdminRole(cfg.Auth.AdminRole),
	)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	if err := fn(svc); err != nil {
		logFailure(logger, cmd, err)
		return err
	}
	return nil
}

// logFailure logs infrastructure failures in full. Expected outcomes such as a
// wrong password are only returned to the user.
func logFailure(logger *slog.Logger, cmd *cobra.Command, err error) {
	switch errutil.Code(err) {
	case account.CodeStorageFailed, account.CodeHashingFailed, "":
		errutil.LogError(logger, cmd.CommandPath()+" failed", err)
	}
}

// readLines reads one line from stdin per name.
func readLines(cmd *cobra.Command, names ...string) ([]string, error) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	lines := make([]string, 0, len(names))
	for _, name := range names {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, oops.Code("INPUT_INVALID").With("field", name).Wrap(err)
			}
			return nil, oops.Code("INPUT_INVALID").With("field", name).Errorf("expected %s on stdin", name)
		}
		lines = append(lines, scanner.Text())
	}
	return lines, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func printPermissions(cmd *cobra.Command, perms account.PermissionSet) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACTION\tOBJECT TYPE\tOBJECT ID")
	for _, p := range perms {
		objectID := "*"
		if p.ObjectID != nil {
			objectID = strconv.FormatInt(*p.ObjectID, 10)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.ActionType, p.ObjectType, objectID)
	}
	if err := w.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
