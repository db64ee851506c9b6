package api

import "github.com/swaggo/swag"

// docTemplate is the OpenAPI document served at /swagger/doc.json. Keep it in
// step with the annotations on the handlers.
const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Report whether the database answers",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/revisions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "List every revision file with its ledger state, plus ledger rows without a file",
                "produces": ["application/json"],
                "tags": ["revisions"],
                "summary": "List revisions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.RevisionList"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/v1/revisions/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Show the operations of one revision. The id may be a numeric prefix such as 2",
                "produces": ["application/json"],
                "tags": ["revisions"],
                "summary": "Get a revision",
                "parameters": [
                    {"type": "string", "description": "Revision id or prefix", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.RevisionDetail"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "api.RevisionList": {
            "type": "object",
            "properties": {
                "revisions": {"type": "array", "items": {"$ref": "#/definitions/database.RevisionStatus"}},
                "orphans": {"type": "array", "items": {"type": "string"}},
                "total": {"type": "integer"},
                "pending": {"type": "integer"}
            }
        },
        "api.RevisionDetail": {
            "type": "object",
            "properties": {
                "revision": {"type": "object", "additionalProperties": true},
                "applied": {"type": "boolean"}
            }
        },
        "database.RevisionStatus": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "applied": {"type": "boolean"},
                "date_applied": {"type": "string", "format": "date-time"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds the exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tienda-moves status API",
	Description:      "Read-only view of the tienda schema revisions",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
