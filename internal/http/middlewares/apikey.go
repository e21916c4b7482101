package middlewares

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/healthhook/internal/http/errors"
	svc "github.com/dropDatabas3/healthhook/internal/http/services/apikey"
)

// ExtractAPIKey busca el token en X-API-Key, luego Authorization: Bearer,
// luego el query param api_key. Gana el primero presente.
func ExtractAPIKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	if h := r.Header.Get("Authorization"); h != "" {
		const bearer = "bearer "
		if len(h) > len(bearer) && strings.EqualFold(h[:len(bearer)], bearer) {
			if v := strings.TrimSpace(h[len(bearer):]); v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}

// RequireAPIKey protege una ruta: sin token responde 401 API_KEY_REQUIRED;
// cualquier token rechazado (inválido, expirado, revocado) responde el mismo
// 401 INVALID_API_KEY. La key autenticada queda en el contexto.
func RequireAPIKey(auth svc.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := auth.Authenticate(r.Context(), ExtractAPIKey(r))
			switch {
			case err == nil:
			case errors.Is(err, svc.ErrKeyRequired):
				httperrors.WriteError(w, r, httperrors.ErrAPIKeyRequired)
				return
			case errors.Is(err, svc.ErrKeyInvalid),
				errors.Is(err, svc.ErrKeyExpired),
				errors.Is(err, svc.ErrKeyDeactivated):
				httperrors.WriteError(w, r, httperrors.ErrInvalidAPIKey)
				return
			default:
				httperrors.WriteError(w, r, httperrors.ErrServiceUnavailable.WithCause(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}
