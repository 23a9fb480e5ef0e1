// Package api содержит OpenAPI-описание HTTP-эндпоинтов бота.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
