// Command ici is a small operations CLI for the Institutional Complexity
// Index API. The admin subcommands call /v1/admin and need the key the
// server was started with; index talks to the public read endpoints.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cei-unisinos/ici-backend/internal/util/atomicwrite"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("X-Admin-API-Key", c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("ICI_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("ICI_ADMIN_KEY", "")
		out     = envOr("ICI_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "ici",
		Short: "Operations CLI for the ICI API",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "API base URL (env ICI_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "Admin API key (env ICI_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out-format", out, "Output format: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: 60 * time.Second}}
	refresh := func() {
		cl.BaseURL = baseURL
		cl.APIKey = apiKey
		cl.OutFormat = out
	}

	// ── admin group ──
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations (via /v1/admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			refresh()
			if cl.APIKey == "" {
				return fmt.Errorf("missing API key (flag --admin-api-key or env ICI_ADMIN_KEY)")
			}
			return nil
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the admin API answers with this key",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/downloads?limit=1", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping failed: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, []byte(`{"ok":true}`))
			return nil
		},
	}

	var testTo string
	emailTestCmd := &cobra.Command{
		Use:   "email-test",
		Short: "Send a test message through the configured SMTP account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if testTo == "" {
				return fmt.Errorf("--to is required")
			}
			b, _ := json.Marshal(map[string]string{"to": testTo})
			status, body, err := cl.do("POST", "/v1/admin/email/test", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("email-test failed: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	emailTestCmd.Flags().StringVar(&testTo, "to", "", "Recipient of the test message")

	var downloadsLimit int
	downloadsCmd := &cobra.Command{
		Use:   "downloads",
		Short: "List recent download requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", fmt.Sprintf("/v1/admin/downloads?limit=%d", downloadsLimit), nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("downloads failed: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	downloadsCmd.Flags().IntVar(&downloadsLimit, "limit", 50, "Maximum rows to list")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the current dataset to the Supabase mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("POST", "/v1/admin/sync", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("sync failed: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	adminCmd.AddCommand(pingCmd, emailTestCmd, downloadsCmd, syncCmd)
	root.AddCommand(adminCmd)

	// shorthand for `ici admin sync`
	root.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Push the current dataset to the Supabase mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh()
			if cl.APIKey == "" {
				return fmt.Errorf("missing API key (flag --admin-api-key or env ICI_ADMIN_KEY)")
			}
			return syncCmd.RunE(cmd, args)
		},
	})

	// ── index fetch ──
	var (
		fetchCountries []string
		fetchYearFrom  int
		fetchYearTo    int
		fetchOut       string
	)
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch filtered dataset rows as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh()
			q := url.Values{}
			for _, c := range fetchCountries {
				q.Add("countries", c)
			}
			if fetchYearFrom > 0 {
				q.Set("year_from", fmt.Sprint(fetchYearFrom))
			}
			if fetchYearTo > 0 {
				q.Set("year_to", fmt.Sprint(fetchYearTo))
			}
			path := "/v1/index"
			if enc := q.Encode(); enc != "" {
				path += "?" + enc
			}
			status, body, err := cl.do("GET", path, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("fetch failed: status=%d body=%s", status, string(body))
			}
			if fetchOut != "" {
				if err := atomicwrite.AtomicWriteFile(fetchOut, body, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", fetchOut, err)
				}
				fmt.Printf("wrote %s (%d bytes)\n", fetchOut, len(body))
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}
	fetchCmd.Flags().StringSliceVar(&fetchCountries, "countries", nil, "Country names to filter (repeatable)")
	fetchCmd.Flags().IntVar(&fetchYearFrom, "year-from", 0, "First year of the range")
	fetchCmd.Flags().IntVar(&fetchYearTo, "year-to", 0, "Last year of the range")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Write the response to a file instead of stdout")

	indexCmd := &cobra.Command{Use: "index", Short: "Public dataset reads"}
	indexCmd.AddCommand(fetchCmd)
	root.AddCommand(indexCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
