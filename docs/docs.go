// Package docs registers the OpenAPI description served on /swagger
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/guest": {"post": {"tags": ["auth"], "summary": "Issue a guest session token", "responses": {"201": {"description": "Created"}}}},
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register or claim a checkout account; merges guest holds from X-Guest-Token", "responses": {"201": {"description": "Created"}, "409": {"description": "Email already registered"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Log in; merges guest holds from X-Guest-Token", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}}},
        "/auth/refresh": {"post": {"tags": ["auth"], "summary": "Exchange a refresh token", "responses": {"200": {"description": "OK"}}}},
        "/auth/me": {"get": {"tags": ["auth"], "summary": "Current account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/occurrences/{occurrenceId}/availability": {"get": {"tags": ["seats"], "summary": "Seat availability of an occurrence", "parameters": [{"name": "occurrenceId", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown occurrence"}}}},
        "/holds": {
            "get": {"tags": ["holds"], "summary": "Cart of the caller", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["holds"], "summary": "Hold a seat", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Seat unavailable"}}},
            "delete": {"tags": ["holds"], "summary": "Release every hold of the caller", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/holds/extend": {"post": {"tags": ["holds"], "summary": "Extend an active hold", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "409": {"description": "Hold expired"}}}},
        "/holds/release": {"post": {"tags": ["holds"], "summary": "Release one hold", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/holds/merge": {"post": {"tags": ["holds"], "summary": "Move guest holds to the account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/promocodes/{code}/validate": {"get": {"tags": ["promocodes"], "summary": "Validate a promocode for a ticket count", "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/orders": {
            "get": {"tags": ["orders"], "summary": "Orders of the account", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["orders"], "summary": "Create an order from held seats", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Seat unavailable"}}}
        },
        "/orders/{id}": {"get": {"tags": ["orders"], "summary": "Order by id", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
        "/orders/{id}/reconcile": {"post": {"tags": ["payments"], "summary": "Settle the order against the payment authority", "security": [{"BearerAuth": []}], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "503": {"description": "Payment authority unavailable"}}}},
        "/payments/return": {"get": {"tags": ["payments"], "summary": "Payment provider redirect landing", "parameters": [{"name": "order_id", "in": "query", "required": true, "type": "string"}], "responses": {"302": {"description": "Redirect to the storefront"}}}},
        "/payments/webhook": {"post": {"tags": ["payments"], "summary": "Signed provider callback", "parameters": [{"name": "X-Signature", "in": "header", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "401": {"description": "Bad signature"}}}},
        "/admin/occurrences": {"post": {"tags": ["admin"], "summary": "Generate an occurrence seat map and tickets", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}},
        "/admin/promocodes": {"post": {"tags": ["admin"], "summary": "Create or replace a promocode", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Seatflow API",
	Description:      "Seat holds, orders and payment reconciliation for ticketed occurrences.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
