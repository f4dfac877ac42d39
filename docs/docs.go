// Package docs registers the OpenAPI document served under /swagger. It is maintained by hand
// alongside the swag annotations on the handlers.
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
        "/healthz": {
            "get": {
                "description": "Returns service status",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Opens a hosted checkout with the plan's provider and records the user as pending_payment.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscription"],
                "summary": "Create checkout session",
                "parameters": [
                    {"description": "Plan and optional provider/interval", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/checkout.Request"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespCheckout"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespError"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/handlers.RespError"}}
                }
            }
        },
        "/api/v1/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Polls the provider for the caller's checkout session and reconciles the result. The body is optional.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscription"],
                "summary": "Verify payment",
                "parameters": [
                    {"description": "Session to verify; defaults to the stored session", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/verification.Request"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespVerify"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.RespError"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/handlers.RespError"}}
                }
            }
        },
        "/api/v1/discount/redeem": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Grants an internal active subscription for a 100% discount code.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscription"],
                "summary": "Redeem discount code",
                "parameters": [
                    {"description": "Discount code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RedeemDiscountRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespRedemption"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.RespError"}}
                }
            }
        },
        "/api/v1/subscription": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the caller's subscription state and whether it currently grants access.",
                "produces": ["application/json"],
                "tags": ["Subscription"],
                "summary": "Current subscription",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespSubscriptionInfo"}}
                }
            }
        },
        "/api/v1/webhook/{provider}": {
            "post": {
                "description": "Receives a provider event, verifies its signature and reconciles the subscription. Ignored events are acknowledged with 200.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhook"],
                "summary": "Provider webhook",
                "parameters": [
                    {"type": "string", "description": "card, paypal or aggregator", "name": "provider", "in": "path", "required": true},
                    {"description": "Raw provider event", "name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespWebhook"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.RespError"}}
                }
            }
        },
        "/api/v1/admin/verify": {
            "post": {
                "security": [{"AdminToken": []}],
                "description": "Runs verification on behalf of a user.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Verify payment (Admin)",
                "parameters": [
                    {"description": "Target user and optional session", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AdminVerifyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespVerify"}}
                }
            }
        },
        "/api/v1/admin/discount_codes": {
            "post": {
                "security": [{"AdminToken": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Create discount code (Admin)",
                "parameters": [
                    {"description": "New code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/discount.CreateCodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespDiscountCode"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespError"}}
                }
            }
        },
        "/api/v1/admin/list_subscriptions": {
            "post": {
                "security": [{"AdminToken": []}],
                "description": "Retrieves a paginated and filterable list of subscription records.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List subscriptions (Admin)",
                "parameters": [
                    {"description": "Filters, pagination and sorting", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ListSubscriptionsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespListSubscriptions"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespError"}}
                }
            }
        },
        "/api/v1/admin/get_subscription_statistic": {
            "post": {
                "security": [{"AdminToken": []}],
                "description": "Returns the requested aggregate counters; all of them when data_items is empty.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Subscription statistics (Admin)",
                "parameters": [
                    {"description": "Statistic ids", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/statistics.Request"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespStatistic"}}
                }
            }
        }
    },
    "definitions": {
        "checkout.Request": {
            "type": "object",
            "required": ["plan_id"],
            "properties": {
                "plan_id": {"type": "string"},
                "provider": {"type": "string", "enum": ["card", "paypal", "aggregator"]},
                "interval": {"type": "string", "enum": ["month", "year"]}
            }
        },
        "verification.Request": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "provider": {"type": "string"}
            }
        },
        "verification.Result": {
            "type": "object",
            "properties": {
                "verified": {"type": "boolean"},
                "status": {"type": "string"},
                "message": {"type": "string"},
                "subscription": {"type": "object"}
            }
        },
        "discount.CreateCodeRequest": {
            "type": "object",
            "required": ["code", "discount_percent", "duration_months", "max_uses"],
            "properties": {
                "code": {"type": "string"},
                "discount_percent": {"type": "integer"},
                "duration_months": {"type": "integer"},
                "max_uses": {"type": "integer"},
                "is_active": {"type": "boolean"}
            }
        },
        "handlers.RedeemDiscountRequest": {
            "type": "object",
            "required": ["code"],
            "properties": {"code": {"type": "string"}}
        },
        "handlers.AdminVerifyRequest": {
            "type": "object",
            "required": ["user_id"],
            "properties": {
                "user_id": {"type": "string"},
                "session_id": {"type": "string"},
                "provider": {"type": "string"}
            }
        },
        "handlers.ListSubscriptionsRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"$ref": "#/definitions/types.CommonFilter"}},
                "from": {"type": "integer"},
                "size": {"type": "integer"},
                "sort_by": {"type": "string"},
                "sort_order": {"type": "string"}
            }
        },
        "statistics.Request": {
            "type": "object",
            "properties": {
                "data_items": {"type": "array", "items": {"type": "object", "properties": {"id": {"type": "string"}}}}
            }
        },
        "types.CommonFilter": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "operator": {"type": "string", "enum": ["eq", "not_eq", "lt", "lte", "gt", "gte", "range", "in"]},
                "values": {"type": "array", "items": {}}
            }
        },
        "response.ErrorData": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "retryable": {"type": "boolean"},
                "provider_status": {"type": "integer"},
                "provider_body": {"type": "string"}
            }
        },
        "handlers.RespDiscountCode": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "discount_percent": {"type": "integer"},
                        "duration_months": {"type": "integer"},
                        "max_uses": {"type": "integer"},
                        "current_uses": {"type": "integer"},
                        "is_active": {"type": "boolean"}
                    }
                }
            }
        },
        "handlers.RespListSubscriptions": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object", "properties": {"items": {"type": "array", "items": {"type": "object"}}, "total": {"type": "integer"}}}
            }
        },
        "handlers.RespStatistic": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object", "properties": {"data_items": {"type": "object"}}}
            }
        },
        "handlers.RespError": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "message": {"type": "string"}, "data": {"$ref": "#/definitions/response.ErrorData"}}
        },
        "handlers.RespCheckout": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object", "properties": {"checkout_url": {"type": "string"}, "session_id": {"type": "string"}}}
            }
        },
        "handlers.RespVerify": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "message": {"type": "string"}, "data": {"$ref": "#/definitions/verification.Result"}}
        },
        "handlers.RespRedemption": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object", "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}, "subscription": {"type": "object"}}}
            }
        },
        "handlers.RespSubscriptionInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {
                    "type": "object",
                    "properties": {
                        "status": {"type": "string"},
                        "provider": {"type": "string"},
                        "interval": {"type": "string"},
                        "current_period_start": {"type": "string"},
                        "current_period_end": {"type": "string"},
                        "cancel_at_period_end": {"type": "boolean"},
                        "entitled": {"type": "boolean"}
                    }
                }
            }
        },
        "handlers.RespWebhook": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {
                    "type": "object",
                    "properties": {
                        "result": {"type": "string"},
                        "event_id": {"type": "string"},
                        "event_type": {"type": "string"},
                        "outcome": {"type": "string"},
                        "reason": {"type": "string"}
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "AdminToken": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Subsync API",
	Description:      "Subscription checkout, verification and provider webhook reconciliation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
