package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "College Timetable API",
        "description": "Generates conflict-free weekly timetables for sections, teachers and lab batches.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Timetables", "description": "Core and lab generation, stored timetable lookups"},
        {"name": "Legacy", "description": "Front-end compatible raw-shape endpoints"},
        {"name": "System", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check pinging Postgres and Redis when enabled",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "Prometheus exposition"}}
            }
        },
        "/api/v1/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "System metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate core timetables",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed request, validation error or invalid demand", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No conflict-free timetable found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Scheduler at capacity", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/labs/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate lab rotation",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LabTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed request or invalid demand", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No conflict-free rotation found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a stored generation",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/teacher": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Stored timetables of a teacher, newest first",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "teacher", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/timetables/student": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Latest stored timetable of a section",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "year", "type": "integer", "required": true},
                    {"in": "query", "name": "section", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/generate_timetable": {
            "post": {
                "tags": ["Legacy"],
                "summary": "Generate core timetables, or look up a stored section timetable when the body is {year, section}",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "{student_timetable, teacher_timetable} or {year, section, table_data}"},
                    "400": {"description": "Failure", "schema": {"$ref": "#/definitions/Failure"}},
                    "422": {"description": "Failure", "schema": {"$ref": "#/definitions/Failure"}}
                }
            }
        },
        "/generate_lab_timetable": {
            "post": {
                "tags": ["Legacy"],
                "summary": "Generate lab rotation rows",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LabTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/LabSummaryRow"}}},
                    "400": {"description": "Failure", "schema": {"$ref": "#/definitions/Failure"}}
                }
            }
        },
        "/get_timetable_teacher": {
            "get": {
                "tags": ["Legacy"],
                "summary": "Stored teacher timetables as JSON-encoded strings",
                "parameters": [{"in": "query", "name": "teacher", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/LegacyTeacherRecord"}}},
                    "400": {"description": "Failure", "schema": {"$ref": "#/definitions/Failure"}}
                }
            }
        }
    },
    "definitions": {
        "GridRequest": {
            "type": "object",
            "properties": {
                "days": {"type": "array", "items": {"type": "string"}},
                "periods": {"type": "array", "items": {"type": "string"}},
                "lunch_period": {"type": "integer"}
            }
        },
        "LabSummaryRow": {
            "type": "object",
            "properties": {
                "Year": {"type": "integer"},
                "Day": {"type": "string"},
                "Time": {"type": "string"},
                "Section": {"type": "string"},
                "Subject": {"type": "string"},
                "Batch": {"type": "string", "example": "Batch 1"},
                "Lab": {"type": "string"},
                "Teacher": {"type": "string"}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["years_sections", "subject_input", "hours_input"],
            "properties": {
                "years_sections": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "num_subjects": {"type": "object", "additionalProperties": {"type": "integer"}},
                "subject_input": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "hours_input": {"type": "object", "additionalProperties": {"type": "integer"}},
                "lang": {"type": "object", "additionalProperties": {"type": "string"}},
                "lang_hours": {"type": "object", "additionalProperties": {"type": "integer"}},
                "teacher_name": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "rooms": {"type": "array", "items": {"type": "string"}},
                "num_classrooms": {"type": "integer"},
                "optional_subject": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "optional_subject_hours": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "integer"}}},
                "optional_subject_teacher": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "lab_summary": {"type": "array", "items": {"$ref": "#/definitions/LabSummaryRow"}},
                "grid": {"$ref": "#/definitions/GridRequest"},
                "year": {"type": "integer"},
                "section": {"type": "string"}
            }
        },
        "LabTimetableRequest": {
            "type": "object",
            "required": ["years_sections", "labs_per_sections"],
            "properties": {
                "years_sections": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "labs_per_sections": {"type": "object", "additionalProperties": {"type": "integer"}},
                "subjects_per_year": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "batches_per_section": {"type": "object", "additionalProperties": {"type": "integer"}},
                "labs": {"type": "array", "items": {"type": "string"}},
                "lab_teachers": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "grid": {"$ref": "#/definitions/GridRequest"}
            }
        },
        "LegacyTeacherRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "timetable": {"type": "string"}
            }
        },
        "Failure": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "error": {"type": "string"}
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
                "message": {"type": "string"},
                "error": {"$ref": "#/definitions/APIError"},
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
