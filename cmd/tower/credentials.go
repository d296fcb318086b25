package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oriys/tower/internal/output"
	"github.com/oriys/tower/internal/secrets"
	"github.com/spf13/cobra"
)

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"cred", "creds"},
		Short:   "Manage bearer tokens referenced as $SECRET:name",
	}
	cmd.AddCommand(
		credentialsKeygenCmd(),
		credentialsSetCmd(),
		credentialsDeleteCmd(),
		credentialsListCmd(),
	)
	return cmd
}

// withCredentialStore opens the store from config, runs fn and closes it.
func withCredentialStore(cmd *cobra.Command, fn func(ctx context.Context, s *secrets.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Credentials.Enabled() {
		return fmt.Errorf("credential store disabled: set credentials.key_file or TOWER_CREDENTIALS_KEY_FILE")
	}
	store, backend, err := openCredentialStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx := context.Background()
	if err := backend.Ping(ctx); err != nil {
		return fmt.Errorf("connect to credential store at %s: %w", cfg.Credentials.Redis.Addr, err)
	}
	return fn(ctx, store)
}

func credentialsKeygenCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a master key for the credential store",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}
			if err := os.WriteFile(out, []byte(key+"\n"), 0600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}
			output.NewPrinter(output.FormatTable).Success("Key written to %s", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the key to this file instead of stdout")
	return cmd
}

func credentialsSetCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a bearer token",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var value string
			switch {
			case len(args) == 2:
				value = args[1]
			case fromStdin:
				v, err := readValue(cmd.InOrStdin())
				if err != nil {
					return err
				}
				value = v
			default:
				return fmt.Errorf("value required: pass it as an argument or use --stdin")
			}
			if value == "" {
				return fmt.Errorf("empty value for credential %q", name)
			}

			return withCredentialStore(cmd, func(ctx context.Context, s *secrets.Store) error {
				if err := s.Set(ctx, name, []byte(value)); err != nil {
					return err
				}
				output.NewPrinter(output.FormatTable).Success("Credential %s stored (reference: $SECRET:%s)", name, name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the value from stdin")
	return cmd
}

func readValue(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read value: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func credentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(cmd, func(ctx context.Context, s *secrets.Store) error {
				if err := s.Delete(ctx, args[0]); err != nil {
					return err
				}
				output.NewPrinter(output.FormatTable).Success("Credential %s deleted", args[0])
				return nil
			})
		},
	}
}

func credentialsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(cmd, func(ctx context.Context, s *secrets.Store) error {
				names, err := s.List(ctx)
				if err != nil {
					return err
				}
				return output.NewPrinter(output.ParseFormat(outputFormat)).PrintNames("Credentials", names)
			})
		},
	}
}
