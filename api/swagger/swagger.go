package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CredAssure Dispute API",
        "description": "Credit dispute management with bureau response enforcement",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and logout"},
        {"name": "Disputes", "description": "Dispute item lifecycle"},
        {"name": "Enforcement", "description": "Evidence ingestion, violations and deadline scanning"},
        {"name": "Verification", "description": "Identity verification per member and bureau"},
        {"name": "Exports", "description": "Asynchronous violation and enforcement reports"},
        {"name": "Evidence", "description": "Scanned-letter attachments"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "New token pair issued"},
                    "401": {"description": "Refresh token expired or revoked"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "User info", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disputes": {
            "post": {
                "tags": ["Disputes"],
                "summary": "File a new dispute item",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDisputeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Dispute created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            },
            "get": {
                "tags": ["Disputes"],
                "summary": "List dispute items",
                "parameters": [
                    {"name": "memberId", "in": "query", "type": "string"},
                    {"name": "bureau", "in": "query", "type": "string", "enum": ["EQUIFAX", "EXPERIAN", "TRANSUNION"]},
                    {"name": "status", "in": "query", "type": "array", "items": {"type": "string"}},
                    {"name": "overdue", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Dispute items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disputes/{id}": {
            "get": {
                "tags": ["Disputes"],
                "summary": "Get one dispute item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Dispute item"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/disputes/{id}/evidence": {
            "post": {
                "tags": ["Enforcement"],
                "summary": "Ingest bureau response evidence",
                "description": "Classifies the letter, detects procedural violations and advances the dispute round.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IngestEvidenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Ingest result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Terminal state or version conflict"}
                }
            },
            "get": {
                "tags": ["Enforcement"],
                "summary": "Evidence timeline",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Evidence records, oldest first"}
                }
            }
        },
        "/disputes/{id}/enforcement": {
            "get": {
                "tags": ["Enforcement"],
                "summary": "Enforcement view of a dispute item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Derived enforcement state"}
                }
            }
        },
        "/disputes/{id}/advance": {
            "post": {
                "tags": ["Disputes"],
                "summary": "Start the next escalation round",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdvanceRoundRequest"}}
                ],
                "responses": {
                    "200": {"description": "New round started"},
                    "409": {"description": "Not advanceable or version conflict"}
                }
            }
        },
        "/disputes/{id}/reinsert": {
            "post": {
                "tags": ["Enforcement"],
                "summary": "Record a bureau reinsertion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Item flagged with a reinsertion violation"},
                    "409": {"description": "Item is not in RESOLVED_DELETED"}
                }
            }
        },
        "/members/{memberId}/enforcement": {
            "get": {
                "tags": ["Enforcement"],
                "summary": "Enforcement summary for a member",
                "parameters": [
                    {"name": "memberId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Open, overdue and violation counts"}
                }
            }
        },
        "/members/{memberId}/verification/{bureau}": {
            "get": {
                "tags": ["Verification"],
                "summary": "Identity verification status",
                "parameters": [
                    {"name": "memberId", "in": "path", "required": true, "type": "string"},
                    {"name": "bureau", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Verification record"}
                }
            },
            "post": {
                "tags": ["Verification"],
                "summary": "Mark member as identity-verified",
                "description": "Releases dispute items held in identity verification for this member and bureau.",
                "parameters": [
                    {"name": "memberId", "in": "path", "required": true, "type": "string"},
                    {"name": "bureau", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Verified"}
                }
            }
        },
        "/enforcement/scan": {
            "post": {
                "tags": ["Enforcement"],
                "summary": "Run a deadline scan now",
                "responses": {
                    "200": {"description": "Scan report"},
                    "409": {"description": "A scan is already running"}
                }
            }
        },
        "/enforcement/rules": {
            "get": {
                "tags": ["Enforcement"],
                "summary": "Active enforcement rule set",
                "responses": {
                    "200": {"description": "Rule set with version and deadline days"}
                }
            }
        },
        "/exports/{type}": {
            "post": {
                "tags": ["Exports"],
                "summary": "Enqueue an export job",
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string", "enum": ["violations", "enforcement"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job queued"}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Job status and result URL when finished"},
                    "404": {"description": "Unknown job"}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/evidence/{id}/attachments": {
            "post": {
                "tags": ["Evidence"],
                "summary": "Attach a scanned document to an evidence record",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Attachment stored"}
                }
            },
            "get": {
                "tags": ["Evidence"],
                "summary": "List attachments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Attachments"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateDisputeRequest": {
            "type": "object",
            "required": ["bureau", "creditor", "accountRef"],
            "properties": {
                "memberId": {"type": "string"},
                "bureau": {"type": "string", "enum": ["EQUIFAX", "EXPERIAN", "TRANSUNION"]},
                "creditor": {"type": "string"},
                "accountRef": {"type": "string"},
                "filedAt": {"type": "string", "format": "date-time"}
            }
        },
        "IngestEvidenceRequest": {
            "type": "object",
            "required": ["rawContent"],
            "properties": {
                "rawContent": {"type": "string"},
                "receivedAt": {"type": "string", "format": "date-time"}
            }
        },
        "AdvanceRoundRequest": {
            "type": "object",
            "required": ["expectedVersion"],
            "properties": {
                "expectedVersion": {"type": "integer"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "memberId": {"type": "string"},
                "bureau": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
