package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Edu Import API",
        "description": "Bulk import and reconciliation service for educational records",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Imports", "description": "Bulk file import runs"},
        {"name": "Records", "description": "Persisted record administration"}
    ],
    "paths": {
        "/imports/grades": {
            "post": {
                "tags": ["Imports"],
                "summary": "Upload a grades file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "year", "in": "formData", "type": "integer", "required": true},
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "Run finished inline", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Run queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "An import is already running for this year"},
                    "413": {"description": "File too large"}
                }
            }
        },
        "/imports/attendance": {
            "post": {
                "tags": ["Imports"],
                "summary": "Upload an attendance file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "year", "in": "formData", "type": "integer", "required": true},
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "Run finished inline", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Run queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/imports/{id}": {
            "get": {
                "tags": ["Imports"],
                "summary": "Import run status",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/imports/{id}/cancel": {
            "post": {
                "tags": ["Imports"],
                "summary": "Cancel a running import",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Cancellation requested", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run already finished"}
                }
            }
        },
        "/imports/{id}/errors.csv": {
            "get": {
                "tags": ["Imports"],
                "summary": "Download a run's row errors as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "CSV content"}
                }
            }
        },
        "/imports/{id}/summary.pdf": {
            "get": {
                "tags": ["Imports"],
                "summary": "Download a run's summary as PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF content"}
                }
            }
        },
        "/records/grades": {
            "delete": {
                "tags": ["Records"],
                "summary": "Delete grade and activity records for a year",
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/attendance": {
            "delete": {
                "tags": ["Records"],
                "summary": "Delete attendance records for a year",
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/counters": {
            "get": {
                "tags": ["Records"],
                "summary": "Per-year record counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RunProgress": {
            "type": "object",
            "properties": {
                "phase": {"type": "string"},
                "current": {"type": "integer"},
                "total": {"type": "integer"},
                "created": {"type": "integer"},
                "errors": {"type": "integer"},
                "success": {"type": "integer"}
            }
        },
        "ImportRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "year": {"type": "integer"},
                "file_name": {"type": "string"},
                "progress": {"$ref": "#/definitions/RunProgress"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
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
