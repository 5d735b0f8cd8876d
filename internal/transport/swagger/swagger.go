package swagger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SpecHandler loads and validates the OpenAPI document once at startup and
// serves the parsed document as JSON. A missing or invalid document disables
// the docs routes rather than failing the server.
func SpecHandler(path string, logger *slog.Logger) http.HandlerFunc {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		logger.Warn("openapi document not loaded, docs routes disabled", "path", path, "error", err)
		return nil
	}
	if err := doc.Validate(context.Background()); err != nil {
		logger.Warn("openapi document failed validation, docs routes disabled", "path", path, "error", err)
		return nil
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		logger.Warn("openapi document not serializable, docs routes disabled", "path", path, "error", err)
		return nil
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}
}

// UIHandler serves the Swagger UI pointed at the YAML document at root.
func UIHandler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"),
	)
}
