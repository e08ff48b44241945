package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/filemill/filemill/internal/cli/output"
	"github.com/filemill/filemill/internal/cli/prompt"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long: `Manage FileMill users directly in the database.

These commands open the configured database, so they work without a
running API server. For self-service registration use the REST API's
/api/v1/auth/register endpoint instead.

Subcommands:
  create  Create a new user
  list    List all users
  delete  Delete a user`,
}

var (
	createUserEmail    string
	createUserPassword string
	createUserRole     string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user in the database.

If email or password are not provided via flags, you will be prompted
to enter them interactively.

Examples:
  # Create user interactively
  filemill user create

  # Create user with flags
  filemill user create --email alice@example.com --password secret123

  # Create an admin
  filemill user create --email ops@example.com --password secret123 --role admin`,
	RunE: runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List all users in the database.

Examples:
  # List users as table
  filemill user list

  # List as JSON
  filemill user list -o json`,
	RunE: runUserList,
}

var userDeleteForce bool

var userDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete a user",
	Long: `Delete a user by email.

The user's files and jobs stay in the database; only the account is
removed.

Examples:
  filemill user delete alice@example.com
  filemill user delete alice@example.com --force`,
	Args: cobra.ExactArgs(1),
	RunE: runUserDelete,
}

var userListOutput string

func init() {
	userCreateCmd.Flags().StringVarP(&createUserEmail, "email", "e", "", "Email address (prompts if not provided)")
	userCreateCmd.Flags().StringVarP(&createUserPassword, "password", "p", "", "Password (prompts if not provided)")
	userCreateCmd.Flags().StringVar(&createUserRole, "role", "user", "Role (user|admin)")

	userListCmd.Flags().StringVarP(&userListOutput, "output", "o", "table", "Output format (table|json|yaml)")

	userDeleteCmd.Flags().BoolVar(&userDeleteForce, "force", false, "Skip confirmation prompt")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
}

// openStore loads config and opens the state store for a user command.
func openStore() (*store.GORMStore, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	interactive := !cmd.Flags().Changed("email")

	email := strings.TrimSpace(createUserEmail)
	if email == "" {
		email, err = prompt.InputRequired("Email")
		if err != nil {
			return handleAbort(err)
		}
		email = strings.TrimSpace(email)
	}

	password := createUserPassword
	if password == "" {
		password, err = prompt.PasswordWithConfirmation("Password", "Confirm password", 8)
		if err != nil {
			return handleAbort(err)
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	role := createUserRole
	if interactive && !cmd.Flags().Changed("role") {
		role, err = prompt.Select("Role", []prompt.SelectOption{
			{Label: "user", Value: "user", Description: "Regular user with access to their own files"},
			{Label: "admin", Value: "admin", Description: "Administrator"},
		})
		if err != nil {
			return handleAbort(err)
		}
	}
	if !models.UserRole(role).IsValid() {
		return fmt.Errorf("invalid role %q (valid: user, admin)", role)
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if _, err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %q created (role: %s)\n", email, role)
	return nil
}

// userList renders users as a table.
type userList []*models.User

func (ul userList) Headers() []string {
	return []string{"EMAIL", "ROLE", "CREATED", "LAST LOGIN"}
}

func (ul userList) Rows() [][]string {
	rows := make([][]string, 0, len(ul))
	for _, u := range ul {
		lastLogin := "-"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{u.Email, u.Role, u.CreatedAt.Format("2006-01-02 15:04"), lastLogin})
	}
	return rows
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	format, err := output.ParseFormat(userListOutput)
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, users)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, users)
	default:
		return output.PrintTable(os.Stdout, userList(users))
	}
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	email := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("user %q not found", email)
	}

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete user %q?", email), userDeleteForce)
	if err != nil {
		return handleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := st.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User %q deleted\n", email)
	return nil
}

// handleAbort turns a Ctrl+C during a prompt into a quiet exit.
func handleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}
