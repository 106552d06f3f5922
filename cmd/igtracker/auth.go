package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igtracker/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram session credentials",
	Long: `Manage stored Instagram session credentials.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your session cookies or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store an Instagram web session securely",
	Long: `Store an Instagram web session in the system keychain or encrypted file.

You will be prompted for:
  - Session ID (from the sessionid cookie)
  - CSRF Token (from the csrftoken cookie)
  - User Agent (optional, press Enter for default)

To get these values:
1. Log into Instagram in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies > https://www.instagram.com
4. Copy the sessionid and csrftoken values`,
	Example: `  # Store the default session
  igtracker auth login

  # Store a session under a label
  igtracker auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:     "logout [label]",
	Short:   "Remove a stored session",
	Example: `  igtracker auth logout`,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List all stored sessions with cookie values masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	label := auth.DefaultLabel
	if len(args) > 0 {
		label = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("Session '%s' already exists. Update it? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Println("Enter your cookie values (they will be hidden as you type):")

	var sessionID string
	for {
		fmt.Print("sessionid cookie value: ")
		sessionID, err = readPassword()
		if err != nil {
			return fmt.Errorf("failed to read session ID: %w", err)
		}
		if len(sessionID) < 20 || !strings.Contains(sessionID, "%") {
			fmt.Println("\nThat doesn't look like a valid sessionid.")
			fmt.Println("It should be a long string containing % symbols, e.g. 12345678%3Aabcdef%3A26%3A...")
			fmt.Print("Try again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				return fmt.Errorf("aborted")
			}
			continue
		}
		break
	}

	var csrfToken string
	for {
		fmt.Print("\ncsrftoken cookie value: ")
		csrfToken, err = readPassword()
		if err != nil {
			return fmt.Errorf("failed to read CSRF token: %w", err)
		}
		if len(csrfToken) < 20 || len(csrfToken) > 50 {
			fmt.Println("\nThat doesn't look like a valid csrftoken.")
			fmt.Println("It should be around 32 characters long.")
			fmt.Print("Try again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				return fmt.Errorf("aborted")
			}
			continue
		}
		break
	}

	fmt.Print("\nUser Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	session := &auth.Session{
		Label:     label,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: userAgent,
	}

	if err := manager.Store(session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	masked := auth.Sanitize(session)
	fmt.Printf("\nStored session '%s' (sessionid %s)\n", label, masked.SessionID)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	label := auth.DefaultLabel
	if len(args) > 0 {
		label = args[0]
	}

	if err := manager.Delete(label); err != nil {
		return err
	}
	fmt.Printf("Removed session '%s'\n", label)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No stored sessions")
		return nil
	}

	for _, session := range sessions {
		masked := auth.Sanitize(session)
		fmt.Printf("%-12s sessionid=%s csrftoken=%s (modified %s)\n",
			masked.Label, masked.SessionID, masked.CSRFToken,
			masked.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func readPassword() (string, error) {
	data, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(data)), nil
}
