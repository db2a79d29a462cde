// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["projects"],
                "summary": "Create and fund a project",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Retry key scoped to the caller", "name": "Idempotency-Key", "in": "header"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createProjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed from Idempotency-Key", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["projects"],
                "summary": "Get project details",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects/{id}/complete": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["projects"],
                "summary": "Mark a project complete",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "422": {"description": "Deadline passed", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects/{id}/approve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["projects"],
                "summary": "Approve and release funds",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorBody"}},
                    "502": {"description": "Resolved but payout failed", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects/{id}/dispute": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["projects"],
                "summary": "Raise a dispute",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects/{id}/resolve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["projects"],
                "summary": "Resolve a dispute",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.resolveDisputeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.projectResponse"}},
                    "502": {"description": "Resolved but payout failed", "schema": {"$ref": "#/definitions/handler.errorBody"}}
                }
            }
        },
        "/v1/projects/{id}/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["operator"],
                "summary": "List project events",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.eventListResponse"}}
                }
            }
        },
        "/v1/balance": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["operator"],
                "summary": "Held balance",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.balanceResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.registerRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["member", "operator"]},
                "identity": {"type": "string"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.authResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"type": "object"}
            }
        },
        "handler.createProjectRequest": {
            "type": "object",
            "required": ["deadline", "freelancer", "value"],
            "properties": {
                "freelancer": {"type": "string"},
                "details": {"type": "string"},
                "deadline": {"type": "string", "format": "date-time"},
                "value": {"type": "integer"}
            }
        },
        "handler.resolveDisputeRequest": {
            "type": "object",
            "required": ["favor_freelancer"],
            "properties": {
                "favor_freelancer": {"type": "boolean"}
            }
        },
        "handler.projectResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "client": {"type": "string"},
                "freelancer": {"type": "string"},
                "amount": {"type": "integer"},
                "status": {"type": "string", "enum": ["created", "funded", "completed", "disputed", "resolved"]},
                "details": {"type": "string"},
                "deadline": {"type": "string", "format": "date-time"},
                "client_approved": {"type": "boolean"},
                "freelancer_completed": {"type": "boolean"},
                "winner": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "handler.eventResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "project_id": {"type": "integer"},
                "type": {"type": "string"},
                "actor": {"type": "string"},
                "amount": {"type": "integer"},
                "winner": {"type": "string"},
                "occurred_at": {"type": "string", "format": "date-time"}
            }
        },
        "handler.eventListResponse": {
            "type": "object",
            "properties": {
                "project_id": {"type": "integer"},
                "events": {"type": "array", "items": {"$ref": "#/definitions/handler.eventResponse"}}
            }
        },
        "handler.balanceResponse": {
            "type": "object",
            "properties": {
                "held": {"type": "integer"}
            }
        },
        "handler.errorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Escrow Service API",
	Description:      "Two-party escrow: clients lock funds for freelancers, released on approval or by dispute resolution.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
