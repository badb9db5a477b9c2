package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"osapi/internal/api"
	"osapi/internal/config"
)

func newRegisterCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var name, email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user and print its access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), passwordStdin)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Register(cmd.Context(), api.RegisterRequest{
					Name:                 name,
					Email:                email,
					Password:             password,
					PasswordConfirmation: password,
				})
				if err != nil {
					return err
				}
				return writeTokenResponse(resp, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newLoginCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a new access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), passwordStdin)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Login(cmd.Context(), api.LoginRequest{Email: email, Password: password})
				if err != nil {
					return err
				}
				return writeTokenResponse(resp, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newLogoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token in OSAPI_API_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				message, err := client.Logout(cmd.Context())
				if err != nil {
					return err
				}
				return writePlain("%s\n", message)
			})
		},
	}
}

func newWhoamiCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user that owns OSAPI_API_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				user, err := client.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(user)
				}
				return writePlain("%s <%s> (id %d)\n", user.Name, user.Email, user.ID)
			})
		},
	}
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		return "", fmt.Errorf("--password-stdin is required")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}

func writeTokenResponse(resp api.AuthTokenResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(resp)
	}
	return writePlain("%s\n", resp.AccessToken)
}
