package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// Load .env if present; flags and environment win over it
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "billingctl",
		Short:   "billingctl - operator CLI for the billing service",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("url", envOr("BILLING_URL", "http://localhost:8085"), "Billing service base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("BILLING_TOKEN"), "Bearer token for the billing API")

	// Add subcommands
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(invoicesCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(activateCmd())
	rootCmd.AddCommand(payoffCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(dueCmd())
	rootCmd.AddCommand(processDueCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(recoverCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// apiClient talks to the billing service's HTTP API
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func clientFrom(cmd *cobra.Command) *apiClient {
	baseURL, _ := cmd.Flags().GetString("url")
	token, _ := cmd.Flags().GetString("token")
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// call sends a request and prints the response body as indented JSON.
// Non-2xx responses become an error after printing, so scripts see a
// non-zero exit but humans still see the body.
func (c *apiClient) call(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
	} else {
		fmt.Println(pretty.String())
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
