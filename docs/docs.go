// Package docs registers the OpenAPI description of the host API with swag so
// gin-swagger can serve it at /swagger/doc.json. The route annotations on the
// handlers are the source; regenerate with `swag init -g internal/http/router.go`.
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
        "/owners/{owner}/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "List an owner's orders (cache-first)",
                "operationId": "listOrders",
                "parameters": [
                    {"type": "string", "description": "Owner (user) ID", "name": "owner", "in": "path", "required": true},
                    {"type": "string", "description": "Search query", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListOrdersResponse"}},
                    "304": {"description": "Not modified"},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Submit a new order",
                "operationId": "submitOrder",
                "parameters": [
                    {"type": "string", "description": "Owner (user) ID", "name": "owner", "in": "path", "required": true},
                    {"type": "string", "description": "Key for safe retries (UUID recommended)", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Order payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/handlers.OrderView"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.OrderView"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Rejected by the order service", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Remote unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/owners/{owner}/orders/refresh": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Refresh an owner's cached orders now",
                "operationId": "refreshOrders",
                "parameters": [
                    {"type": "string", "description": "Owner (user) ID", "name": "owner", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListOrdersResponse"}},
                    "409": {"description": "Cache wiped during refresh", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Remote unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/owners/{owner}/orders/{id}/status": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Set an order's status",
                "operationId": "updateOrderStatus",
                "parameters": [
                    {"type": "string", "description": "Owner (user) ID", "name": "owner", "in": "path", "required": true},
                    {"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OrderView"}},
                    "400": {"description": "Invalid status", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Remote unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/owners/{owner}/orders/{id}/advance": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Advance an order to its next status",
                "operationId": "advanceOrder",
                "parameters": [
                    {"type": "string", "description": "Owner (user) ID", "name": "owner", "in": "path", "required": true},
                    {"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OrderView"}},
                    "404": {"description": "Not cached", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "No next status", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/owners/{owner}/orders/{id}/rating": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Orders"],
                "summary": "Rate a delivered order",
                "operationId": "rateOrder",
                "parameters": [
                    {"type": "string", "description": "Owner (user) ID", "name": "owner", "in": "path", "required": true},
                    {"type": "string", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Rating", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RateOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OrderView"}},
                    "409": {"description": "Not delivered or already rated", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/queue": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Queue"],
                "summary": "List the staff order queue",
                "operationId": "listQueue",
                "parameters": [
                    {"type": "string", "description": "Status filter", "name": "status", "in": "query"},
                    {"type": "string", "description": "Created at or after (RFC 3339 or YYYY-MM-DD)", "name": "from", "in": "query"},
                    {"type": "string", "description": "Created before (RFC 3339 or YYYY-MM-DD)", "name": "to", "in": "query"},
                    {"type": "string", "description": "Search passed to the order service", "name": "q", "in": "query"},
                    {"type": "integer", "description": "Page", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.QueueResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/queue/status": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Queue"],
                "summary": "Apply one status to many orders",
                "operationId": "bulkUpdateStatus",
                "parameters": [
                    {"description": "Order ids and target status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.BulkStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.BulkStatusResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/tracking/{number}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "Get the tracking record of an order",
                "operationId": "getTracking",
                "parameters": [
                    {"type": "string", "description": "Order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TrackingResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/tracking/{number}/notify": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "Toggle notify-when-ready",
                "operationId": "toggleNotify",
                "parameters": [
                    {"type": "string", "description": "Order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TrackingResponse"}}
                }
            }
        },
        "/tracking/{number}/poll": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Start status polling",
                "operationId": "startPolling",
                "parameters": [
                    {"type": "string", "description": "Order number", "name": "number", "in": "path", "required": true},
                    {"description": "Interval override", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.StartPollingRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.PollingResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Tracking"],
                "summary": "Stop status polling",
                "operationId": "stopPolling",
                "parameters": [
                    {"type": "string", "description": "Order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "Stopped"}
                }
            }
        },
        "/polling": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "List orders being polled",
                "operationId": "listPolling",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PollingListResponse"}}
                }
            }
        },
        "/session": {
            "get": {"produces": ["application/json"], "tags": ["Session"], "summary": "Session state", "operationId": "getSession", "responses": {"200": {"description": "OK"}}}
        },
        "/session/login": {
            "post": {"produces": ["application/json"], "tags": ["Session"], "summary": "Mark the session authenticated", "operationId": "login", "responses": {"200": {"description": "OK"}}}
        },
        "/session/logout": {
            "post": {"produces": ["application/json"], "tags": ["Session"], "summary": "End the session", "operationId": "logout", "responses": {"200": {"description": "OK"}}}
        },
        "/session/activity": {
            "post": {"produces": ["application/json"], "tags": ["Session"], "summary": "Record user activity", "operationId": "activity", "responses": {"200": {"description": "OK"}}}
        },
        "/session/foreground": {
            "post": {"produces": ["application/json"], "tags": ["Session"], "summary": "App returned to the foreground", "operationId": "foreground", "responses": {"200": {"description": "OK"}}}
        },
        "/session/background": {
            "post": {"produces": ["application/json"], "tags": ["Session"], "summary": "App moved to the background", "operationId": "background", "responses": {"200": {"description": "OK"}}}
        },
        "/notifications": {
            "get": {"produces": ["application/json"], "tags": ["Notifications"], "summary": "Drain pending notifications", "operationId": "drainNotifications", "responses": {"200": {"description": "OK"}}}
        },
        "/cache": {
            "delete": {
                "tags": ["Cache"],
                "summary": "Wipe the local order cache",
                "operationId": "clearCache",
                "responses": {
                    "204": {"description": "Cleared"},
                    "500": {"description": "Cache failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "invalid_status"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handlers.OrderView": {"type": "object"},
        "handlers.ListOrdersResponse": {
            "type": "object",
            "properties": {
                "orders": {"type": "array", "items": {"$ref": "#/definitions/handlers.OrderView"}},
                "count": {"type": "integer", "example": 2}
            }
        },
        "handlers.SubmitOrderRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {"type": "array", "items": {"type": "object", "properties": {"name": {"type": "string"}, "quantity": {"type": "integer"}, "category": {"type": "string"}}}},
                "special_instructions": {"type": "string"},
                "priority": {"type": "boolean"}
            }
        },
        "handlers.UpdateStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "example": "ready"}}
        },
        "handlers.RateOrderRequest": {
            "type": "object",
            "required": ["rating"],
            "properties": {"rating": {"type": "integer", "minimum": 1, "maximum": 5}, "feedback": {"type": "string"}}
        },
        "handlers.QueueResponse": {"type": "object"},
        "handlers.BulkStatusRequest": {"type": "object"},
        "handlers.BulkStatusResponse": {"type": "object"},
        "handlers.TrackingResponse": {"type": "object"},
        "handlers.StartPollingRequest": {
            "type": "object",
            "properties": {"interval_seconds": {"type": "integer", "example": 900}}
        },
        "handlers.PollingResponse": {
            "type": "object",
            "properties": {"order_number": {"type": "string"}, "polling": {"type": "boolean"}, "started": {"type": "boolean"}}
        },
        "handlers.PollingListResponse": {
            "type": "object",
            "properties": {"order_numbers": {"type": "array", "items": {"type": "string"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Laundry Sync API",
	Description:      "Host API of the laundry order sync engine: cache-first order lists, submission, status changes, tracking, polling and session lifecycle.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
