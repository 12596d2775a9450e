package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/dafidxcode/tehsainesia/internal/blogger"
)

var authFlags struct {
	code string
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize blog access and store the OAuth token",
	Long: "auth prints the consent URL, receives the authorization code on the loopback\n" +
		"redirect (or reads it from stdin for other redirects) and stores the resulting\n" +
		"token in blogger.token_file. Run it once before `newsbot run`.",
	RunE: runAuth,
}

func init() {
	authCmd.Flags().StringVar(&authFlags.code, "code", "", "authorization code (prompted for when empty)")
}

func runAuth(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Blogger.ClientID == "" || a.cfg.Blogger.ClientSecret == "" {
		return errors.New("BLOGGER_CLIENT_ID and BLOGGER_CLIENT_SECRET are required")
	}

	oauthCfg := a.oauthConfig().OAuth2()
	out := cmd.OutOrStdout()

	code := authFlags.code
	if code == "" {
		code, err = promptCode(cmd, oauthCfg)
		if err != nil {
			return err
		}
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("empty authorization code")
	}

	file := blogger.NewTokenFile(a.cfg.Blogger.TokenFile)
	if _, err := blogger.Exchange(cmd.Context(), oauthCfg, file, code); err != nil {
		return err
	}

	fmt.Fprintf(out, "Token stored in %s\n", file.Path())
	return nil
}

func promptCode(cmd *cobra.Command, oauthCfg *oauth2.Config) (string, error) {
	out := cmd.OutOrStdout()
	state := uuid.NewString()

	if !blogger.IsLoopback(oauthCfg.RedirectURL) {
		url := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintf(out, "Open this URL in a browser and authorize access:\n\n%s\n\nAuthorization code: ", url)

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read authorization code: %w", err)
		}
		return line, nil
	}

	callback, err := blogger.ListenCallback(oauthCfg.RedirectURL, state)
	if err != nil {
		return "", err
	}
	oauthCfg.RedirectURL = callback.RedirectURL()

	url := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this URL in a browser and authorize access:\n\n%s\n\nWaiting for the redirect to %s ...\n", url, callback.RedirectURL())

	return callback.Wait(cmd.Context())
}
