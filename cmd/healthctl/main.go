package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	cl := &client{out: os.Stdout}
	root := newRootCmd(cl)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd(cl *client) *cobra.Command {
	var (
		baseURL = envOr("HEALTHHOOK_URL", "http://localhost:3000")
		apiKey  = envOr("HEALTHHOOK_API_KEY", "")
		out     = envOr("HEALTHHOOK_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:           "healthctl",
		Short:         "CLI para administrar API keys y probar la ingesta de healthhook",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if out != "json" && out != "text" {
				return fmt.Errorf("--out inválido %q (json|text)", out)
			}
			cl.BaseURL = baseURL
			cl.APIKey = apiKey
			cl.OutFormat = out
			if cl.HTTP == nil {
				cl.HTTP = &http.Client{Timeout: timeout}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env HEALTHHOOK_URL)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", apiKey, "API key para /health (env HEALTHHOOK_API_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Timeout por request")

	root.AddCommand(newPingCmd(cl), newKeysCmd(cl), newIngestCmd(cl), newQueryCmd(cl))
	return root
}

// ping: GET /readyz
func newPingCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Chequea /readyz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.call("ping", http.MethodGet, "/readyz", nil, nil)
			if err != nil {
				return err
			}
			if cl.OutFormat == "text" {
				fmt.Fprintln(cl.out, "ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
