// Package docs registers the OpenAPI document of the admin and Mini App API
// with swag. Keep it in step with the handler annotations.
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
        "/admin/emojis": {
            "get": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List reserved emojis",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Reservations"}}
                }
            }
        },
        "/admin/emojis/{emoji}": {
            "delete": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "description": "Drops the reservation; the owner falls back to the default emoji",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Free a reserved emoji",
                "parameters": [
                    {"type": "string", "description": "Emoji, URL-encoded", "name": "emoji", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EmojiFreed"}},
                    "400": {"description": "Invalid emoji", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/admin/messages/{id}/history": {
            "get": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Message edit history",
                "parameters": [
                    {"type": "integer", "description": "Channel message ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.History"}},
                    "404": {"description": "Message not found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/admin/stats": {
            "get": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Bot statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatsReport"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Not an admin", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "description": "Users in registration order",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List users",
                "parameters": [
                    {"type": "integer", "default": 20, "description": "Maximum number of users", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.UserList"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/admin/users/{id}/ban": {
            "put": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Ban or unban a user",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "id", "in": "path", "required": true},
                    {"description": "Ban state", "name": "ban", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.BanUpdate"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/admin/users/{id}/premium": {
            "post": {
                "security": [{"AdminToken": []}, {"TelegramInitData": []}],
                "description": "Extends premium by the given days; zero or negative days revoke it and free the user's emoji",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Grant premium",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "id", "in": "path", "required": true},
                    {"description": "Days to add", "name": "grant", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.PremiumGrant"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"TelegramInitData": []}],
                "description": "Profile of the Telegram user behind the init data, with premium state and reserved emoji",
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/models.MeResponse"}},
                    "401": {"description": "Missing or invalid init data", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.BanUpdate": {
            "type": "object",
            "properties": {"banned": {"type": "boolean", "example": true}}
        },
        "models.EmojiFreed": {
            "type": "object",
            "properties": {
                "emoji": {"type": "string", "example": "🔥"},
                "freed": {"type": "boolean", "example": true},
                "owner_id": {"type": "integer", "example": 123456789}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "Error message"}}
        },
        "models.History": {
            "type": "object",
            "properties": {
                "edits": {"type": "array", "items": {"type": "object"}},
                "message": {"type": "object"}
            }
        },
        "models.MeResponse": {
            "type": "object",
            "properties": {
                "premium": {"type": "boolean", "example": true},
                "reserved_emoji": {"type": "string", "example": "🦊"},
                "user": {"$ref": "#/definitions/models.User"}
            }
        },
        "models.PremiumGrant": {
            "type": "object",
            "properties": {"days": {"type": "integer", "example": 30}}
        },
        "models.Reservations": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"type": "object"}}}
        },
        "models.StatsReport": {
            "type": "object",
            "properties": {
                "messages": {"type": "integer", "example": 3400},
                "payments": {"type": "integer", "example": 9},
                "premium_users": {"type": "integer", "example": 12},
                "reserved_emojis": {"type": "integer", "example": 7},
                "users": {"type": "integer", "example": 120}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "banned": {"type": "boolean", "example": false},
                "current_emoji": {"type": "string", "example": "📨"},
                "delete_count": {"type": "integer", "example": 0},
                "display_name": {"type": "string", "example": "John Doe"},
                "edit_count": {"type": "integer", "example": 1},
                "id": {"type": "integer", "example": 123456789},
                "last_activity": {"type": "string", "example": "2024-03-15T14:30:00Z"},
                "message_count": {"type": "integer", "example": 12},
                "premium_until": {"type": "string", "example": "2024-04-15T14:30:00Z"},
                "registered_at": {"type": "string", "example": "2024-03-15T14:30:00Z"},
                "username": {"type": "string", "example": "johndoe"}
            }
        },
        "models.UserList": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/models.User"}},
                "total": {"type": "integer", "example": 120}
            }
        }
    },
    "securityDefinitions": {
        "AdminToken": {
            "description": "Bearer token for operator scripts",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "TelegramInitData": {
            "description": "Telegram Mini App init_data string for authentication",
            "type": "apiKey",
            "name": "init_data",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Anonymous Relay Bot API",
	Description:      "Operator and Mini App API for the anonymous channel relay bot.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
