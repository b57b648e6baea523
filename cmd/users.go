package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/linkyapp/linky/internal/apperr"
	"github.com/spf13/cobra"
)

var createSuperuserFlags struct {
	Email    string
	Password string
}

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser",
	Short: "Create an administrator account",
	Long: `Create an account with the admin and superuser flags set.

The password can also be passed with the LINKY_SUPERUSER_PASSWORD environment variable.`,
	Example: `linky create-superuser --email admin@example.com --password secret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		db := openDatabase(cfg)
		defer db.Close() //nolint: errcheck

		password := createSuperuserFlags.Password
		if password == "" {
			password = os.Getenv("LINKY_SUPERUSER_PASSWORD")
		}

		user, err := newAccountService(cfg, db).CreateSuperuser(cmd.Context(), createSuperuserFlags.Email, password)
		if err != nil {
			var verr *apperr.ValidationError
			if errors.As(err, &verr) {
				for field, msg := range verr.Fields {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
				}
			}
			return fmt.Errorf("failed to create superuser: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %d)\n", user.Email, user.ID)
		return nil
	},
}

var deleteUserFlags struct {
	Email string
}

var deleteUserCmd = &cobra.Command{
	Use:     "delete-user",
	Short:   "Delete an account with its links and settings",
	Example: `linky delete-user --email alice@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		db := openDatabase(cfg)
		defer db.Close() //nolint: errcheck

		accounts := newAccountService(cfg, db)
		user, err := accounts.GetUserByEmail(cmd.Context(), deleteUserFlags.Email)
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}
		if err := accounts.DeleteUser(cmd.Context(), user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", user.Email)
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&createSuperuserFlags.Email, "email", "", "Email address of the new account")
	createSuperuserCmd.Flags().StringVar(&createSuperuserFlags.Password, "password", "", "Password of the new account")
	_ = createSuperuserCmd.MarkFlagRequired("email")

	deleteUserCmd.Flags().StringVar(&deleteUserFlags.Email, "email", "", "Email address of the account to delete")
	_ = deleteUserCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(createSuperuserCmd, deleteUserCmd)
}
