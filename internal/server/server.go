package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guyub/internal/access"
	"guyub/internal/engine"
	"guyub/internal/identity"
	"guyub/internal/observability"
	"guyub/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Verifier identity.Verifier
	// DevIssuer enables POST {base}/auth/dev/login when set.
	DevIssuer *identity.Issuer
	Metrics   *observability.MetricsCollector
	Logger    *slog.Logger
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError is the {ok:false, error} envelope.
type apiError struct {
	status  int
	OK      bool   `json:"ok"`
	Message string `json:"error" example:"Forbidden: scope mismatch"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

// New returns an HTTP handler exposing the Guyub API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("server: verifier is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, joinErrors(msg, errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Parameter parsing failures are plain bad requests here.
			status = http.StatusBadRequest
		}
		return newAPIError(status, joinErrors(msg, errs))
	}

	router := chi.NewRouter()
	router.Use(corsMiddleware)
	router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Verifier, cfg.Engine, logger))
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondStatusError(w, newAPIError(http.StatusNotFound, "Not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondStatusError(w, newAPIError(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	hcfg := huma.DefaultConfig("Guyub API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	hcfg.SchemasPath = ""
	hcfg.CreateHooks = nil
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, log: logger}
	registerHealth(group)
	registerUsers(group, h)
	registerAnnouncements(group, h)
	registerEvents(group, h)
	registerComplaints(group, h)
	registerFinance(group, h)
	registerInventory(group, h)
	if cfg.DevIssuer != nil {
		registerDevAuth(group, *cfg.DevIssuer)
	}
	registerDocs(router, basePath)
	registerOpenAPI(router, api, basePath)
	if cfg.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	return router, nil
}

type handlers struct {
	e   engine.Engine
	log *slog.Logger
}

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, OK: false, Message: message}
}

func joinErrors(msg string, errs []error) string {
	if len(errs) == 0 || errs[0] == nil {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, errs[0].Error())
}

// fail maps an engine error to its HTTP status. Unknown errors are logged and
// hidden from the caller.
func (h handlers) fail(ctx context.Context, err error) huma.StatusError {
	return handleError(ctx, h.log, err)
}

func handleError(ctx context.Context, log *slog.Logger, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe access.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, fe.Error())
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, ve.Error())
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, ce.Error())
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, err.Error())
	}
	if errors.Is(err, identity.ErrInvalidCredential) {
		return newAPIError(http.StatusUnauthorized, "Missing/invalid Authorization Bearer token")
	}
	log.ErrorContext(ctx, "internal error", slog.String("error", err.Error()))
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func swaggerHTML(basePath string) string {
	docURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Guyub API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, docURL)
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{
							Type: huma.TypeObject,
							Properties: map[string]*huma.Schema{
								"ok":    {Type: huma.TypeBoolean},
								"error": {Type: huma.TypeString},
							},
						},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	public := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete} {
			if op == nil {
				continue
			}
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"ok": true, "status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, issuer identity.Issuer) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a bearer token for local testing",
		RequestBody: jsonRequestBody[DevLoginRequest](api),
	}, func(ctx context.Context, _ *struct{}) (*dataOutput[DevLoginResponse], error) {
		var req DevLoginRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		uid := strings.TrimSpace(req.UID)
		if uid == "" {
			return nil, newAPIError(http.StatusBadRequest, "uid is required")
		}
		token, err := issuer.Mint(uid)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal error")
		}
		return respond(DevLoginResponse{Token: token}), nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

// decodeBody fills dst from the captured request body. An empty body leaves
// dst untouched.
func decodeBody(ctx context.Context, dst any) huma.StatusError {
	data := bytes.TrimSpace(bodyBytes(ctx))
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var me momentError
		if errors.As(err, &me) {
			return newAPIError(http.StatusBadRequest, me.Error())
		}
		return newAPIError(http.StatusBadRequest, "invalid JSON body")
	}
	return nil
}

func requireID(id string) huma.StatusError {
	if strings.TrimSpace(id) == "" {
		return newAPIError(http.StatusBadRequest, "id is required")
	}
	return nil
}

func unknownAction(action string) huma.StatusError {
	return newAPIError(http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
}
