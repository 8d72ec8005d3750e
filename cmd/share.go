package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var (
	shareServerURL string
	shareXanoToken string
	shareUserID    string
	shareMcpToken  string
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage share tokens on a running proxy",
}

var shareCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint a share token for a Xano credential",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := postJSON(shareServerURL+"/api/create-share", map[string]string{
			"xanoToken": shareXanoToken,
			"userId":    shareUserID,
		})
		if err != nil {
			return err
		}
		cmd.Println(resp)
		return nil
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a share token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := postJSON(shareServerURL+"/api/revoke-share", map[string]string{
			"mcpToken": shareMcpToken,
		})
		if err != nil {
			return err
		}
		cmd.Println(resp)
		return nil
	},
}

func init() {
	shareCmd.PersistentFlags().StringVar(&shareServerURL, "server", "http://127.0.0.1:8080", "base URL of the running proxy")

	shareCreateCmd.Flags().StringVar(&shareXanoToken, "xano-token", "", "Xano API credential to share")
	shareCreateCmd.Flags().StringVar(&shareUserID, "user-id", "", "Xano user id the credential belongs to")
	shareCreateCmd.MarkFlagRequired("xano-token")
	shareCreateCmd.MarkFlagRequired("user-id")

	shareRevokeCmd.Flags().StringVar(&shareMcpToken, "token", "", "share token to revoke")
	shareRevokeCmd.MarkFlagRequired("token")

	shareCmd.AddCommand(shareCreateCmd, shareRevokeCmd)
	rootCmd.AddCommand(shareCmd)
}

func postJSON(url string, payload map[string]string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return strings.TrimSpace(string(data)), nil
}
