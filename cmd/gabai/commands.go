package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/gabai/gabai/internal/api"
	"github.com/gabai/gabai/internal/config"
	"github.com/gabai/gabai/internal/logging"
	"github.com/gabai/gabai/internal/storage"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nValid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> [value]",
	Short: "Store a secret (read from stdin when value is omitted)",
	Long:  "Store a secret in the 0600 secrets file.\n\nSecret keys:\n  " + strings.Join(config.SecretKeys(), "\n  "),
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			v, err := readLine(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading secret from stdin: %w", err)
			}
			value = v
		}
		if err := config.SetSecret(key, value); err != nil {
			return err
		}
		printSuccess("Stored %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve list, reminder and chat tools over MCP (stdio)",
	Long: `Serve GabAi tools to an MCP client over stdin/stdout.

Tools act on behalf of one user: --user, or the signed-in user.

Example client config:
  {"command": "gabai", "args": ["mcp", "--user", "<user id>"]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// stdout carries the protocol; logs stay on stderr.
		_, closeLog := logging.Setup(cfg.Log.Level, cfg.Log.File, true)
		defer closeLog()

		if userID == "" {
			s, err := loadSession(sessionFilePath(cfg.Storage.DataDir))
			if err != nil {
				return fmt.Errorf("--user is required: %w", err)
			}
			userID = s.UserID
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if _, err := store.GetUser(userID); err != nil {
			return fmt.Errorf("user %q: %w", userID, err)
		}

		svc := buildServices(cfg, store)
		deps := api.MCPDeps{
			Store:       store,
			Resolver:    svc.resolver,
			Categorizer: svc.categorizer,
			UserID:      userID,
			Location:    cfg.Assistant.Location(),
		}
		if cfg.LLM.APIKey != "" {
			deps.Assistant = svc.assistant
		} else {
			slog.Warn("llm.api_key is not set, the chat tool is disabled and items use keyword categories")
		}

		slog.Info("MCP server started (stdio transport)", "user_id", userID)
		return server.ServeStdio(api.NewMCPServer(deps))
	},
}

func init() {
	mcpCmd.Flags().String("user", "", "user id the tools act for (default: signed-in user)")
}

// --- signup / login ---

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account on the local server and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient(false)
		if err != nil {
			return err
		}
		s, err := client.authenticate(cmd.Context(), "/api/auth/signup", map[string]string{
			"email": email, "name": name, "password": password,
		})
		if err != nil {
			return err
		}
		printSuccess("Signed up as %s (user %s)", s.Email, s.UserID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the local server",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient(false)
		if err != nil {
			return err
		}
		s, err := client.authenticate(cmd.Context(), "/api/auth/login", map[string]string{
			"email": email, "password": password,
		})
		if err != nil {
			return err
		}
		printSuccess("Signed in as %s", s.Email)
		return nil
	},
}

// passwordFlag returns --password, or reads one line from stdin.
func passwordFlag(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	p, err := readLine(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if p == "" {
		return "", errors.New("password is required")
	}
	return p, nil
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().String("password", "", "account password (prompted when omitted)")
		c.MarkFlagRequired("email")
	}
	signupCmd.Flags().String("name", "", "display name")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message to the assistant",
	Long: `Send one message to the assistant and print its reply and the actions it took.

Examples:
  gabai chat "add milk and eggs to my shopping list"
  gabai chat --conversation 3f2a... "also bread"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient(true)
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/chat", map[string]string{
			"message":        strings.Join(args, " "),
			"conversationId": conversationID,
		})
		if err != nil {
			return err
		}
		var turn turnResponse
		if err := decodeJSON(resp, &turn); err != nil {
			return err
		}

		renderTurn(cmd.OutOrStdout(), turn)
		fmt.Fprintln(cmd.ErrOrStderr(), colorize(colorDim, "conversation "+turn.ConversationID))
		return nil
	},
}

func init() {
	chatCmd.Flags().String("conversation", "", "continue an existing conversation")
}

// --- lists / reminders ---

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show your smart lists and their items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(true)
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/smart-lists/"+url.PathEscape(client.userID))
		if err != nil {
			return err
		}
		var ls []smartList
		if err := decodeJSON(resp, &ls); err != nil {
			return err
		}
		renderLists(cmd.OutOrStdout(), ls)
		return nil
	},
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Show your reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, _ := cmd.Flags().GetBool("pending")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := newAPIClient(true)
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/reminders/"+url.PathEscape(client.userID))
		if err != nil {
			return err
		}
		var rs []reminder
		if err := decodeJSON(resp, &rs); err != nil {
			return err
		}
		renderReminders(cmd.OutOrStdout(), rs, cfg.Assistant.Location(), pending)
		return nil
	},
}

func init() {
	remindersCmd.Flags().Bool("pending", false, "hide completed reminders")
}
