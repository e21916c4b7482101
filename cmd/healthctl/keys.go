package main

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func newKeysCmd(cl *client) *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Operaciones sobre API keys (/api-keys)"}
	keys.AddCommand(
		newKeysCreateCmd(cl),
		newKeysListCmd(cl),
		newKeysGetCmd(cl),
		newKeysUpdateCmd(cl),
		newKeysRevokeCmd(cl),
	)
	return keys
}

func keyPath(id string) string { return "/api-keys/" + url.PathEscape(id) }

func newKeysCreateCmd(cl *client) *cobra.Command {
	var (
		name, desc, expires string
		perms               []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Emite una API key nueva; el token se muestra una sola vez",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name es requerido")
			}
			payload := map[string]any{"name": name}
			if desc != "" {
				payload["description"] = desc
			}
			if len(perms) > 0 {
				payload["permissions"] = perms
			}
			if expires != "" {
				t, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("--expires-at: %w", err)
				}
				payload["expiresAt"] = t
			}
			status, body, err := cl.call("create", http.MethodPost, "/api-keys", payload, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Nombre de la key (3-50 caracteres)")
	cmd.Flags().StringVar(&desc, "description", "", "Descripción (opcional)")
	cmd.Flags().StringSliceVar(&perms, "permission", nil, "Permiso (repetible)")
	cmd.Flags().StringVar(&expires, "expires-at", "", "Expiración RFC3339 (opcional)")
	return cmd
}

func newKeysListCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lista las API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.call("list", http.MethodGet, "/api-keys", nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
}

func newKeysGetCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Muestra una API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.call("get", http.MethodGet, keyPath(args[0]), nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
}

func newKeysUpdateCmd(cl *client) *cobra.Command {
	var (
		name, desc, expires string
		perms               []string
		clearDesc, noExpiry bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Actualiza campos de una API key (solo los flags presentes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			f := cmd.Flags()
			if f.Changed("name") {
				payload["name"] = name
			}
			if f.Changed("description") {
				payload["description"] = desc
			}
			if clearDesc {
				payload["description"] = nil
			}
			if f.Changed("permission") {
				payload["permissions"] = perms
			}
			if f.Changed("expires-at") {
				t, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("--expires-at: %w", err)
				}
				payload["expiresAt"] = t
			}
			if noExpiry {
				payload["expiresAt"] = nil
			}
			if len(payload) == 0 {
				return fmt.Errorf("nada para actualizar")
			}
			status, body, err := cl.call("update", http.MethodPut, keyPath(args[0]), payload, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Nombre nuevo")
	cmd.Flags().StringVar(&desc, "description", "", "Descripción nueva")
	cmd.Flags().BoolVar(&clearDesc, "clear-description", false, "Borra la descripción")
	cmd.Flags().StringSliceVar(&perms, "permission", nil, "Reemplaza los permisos (repetible)")
	cmd.Flags().StringVar(&expires, "expires-at", "", "Expiración RFC3339")
	cmd.Flags().BoolVar(&noExpiry, "no-expiry", false, "Quita la expiración")
	cmd.MarkFlagsMutuallyExclusive("description", "clear-description")
	cmd.MarkFlagsMutuallyExclusive("expires-at", "no-expiry")
	return cmd
}

func newKeysRevokeCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoca una API key (idempotente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := cl.call("revoke", http.MethodDelete, keyPath(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cl.out, "revoked")
			return nil
		},
	}
}
