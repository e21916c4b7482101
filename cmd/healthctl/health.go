package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func (c *client) authHeaders() (map[string]string, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("falta API key (flag --api-key o env HEALTHHOOK_API_KEY)")
	}
	return map[string]string{"X-API-Key": c.APIKey}, nil
}

// ingest: POST /health/android-data con un batch leído de archivo o stdin.
func newIngestCmd(cl *client) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Envía un batch {\"dataPoints\":[...]} a /health/android-data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := cl.authHeaders()
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("el batch no es JSON válido")
			}
			status, body, err := cl.do(http.MethodPost, "/health/android-data", raw, h)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ingest fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Archivo JSON con el batch (- = stdin)")
	return cmd
}

// query: GET /health/data
func newQueryCmd(cl *client) *cobra.Command {
	var (
		userID, metricType string
		limit              int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Consulta mediciones por --user-id y/o --metric-type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := cl.authHeaders()
			if err != nil {
				return err
			}
			q := url.Values{}
			if userID != "" {
				q.Set("userId", userID)
			}
			if metricType != "" {
				q.Set("metricType", metricType)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/health/data"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			status, body, err := cl.call("query", http.MethodGet, path, nil, h)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Filtra por usuario")
	cmd.Flags().StringVar(&metricType, "metric-type", "", "Filtra por tipo (ej. HEART_RATE)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Máximo de resultados (default del servidor: 100)")
	return cmd
}
