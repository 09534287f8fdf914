package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SHS Enrollment API",
        "description": "Senior high school enrollment and registrar backend",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Enrollment", "description": "Public intake wizard"},
        {"name": "Applicants", "description": "Registrar review of applications"},
        {"name": "Students", "description": "Student registry and transitions"},
        {"name": "Sections", "description": "Section management and placement"},
        {"name": "Subjects", "description": "Subject catalogue and offerings"},
        {"name": "Auth", "description": "Login and password reset"},
        {"name": "Users", "description": "Staff account administration"},
        {"name": "Announcements", "description": "Portal announcements"},
        {"name": "Dashboard", "description": "Registrar statistics"},
        {"name": "Reports", "description": "Enrollment list exports"},
        {"name": "Files", "description": "Signed document downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/api/v1/enrollment": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Submit intake wizard step 1 or 2",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Applicant state after the step", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"},
                    "409": {"description": "Email or LRN already registered"}
                }
            }
        },
        "/api/v1/enrollment/documents": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Upload enrollment documents and finalise the application",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "applicant_id", "in": "formData", "type": "string", "required": true},
                    {"name": "birth_certificate", "in": "formData", "type": "file"},
                    {"name": "report_card", "in": "formData", "type": "file"},
                    {"name": "id_picture", "in": "formData", "type": "file"},
                    {"name": "good_moral", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Application marked pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing or invalid documents"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a staff member or student",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Access token"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/password/reset": {
            "post": {
                "tags": ["Auth"],
                "summary": "Request a password reset code by email",
                "responses": {
                    "200": {"description": "Code sent when the account exists"}
                }
            }
        },
        "/api/v1/auth/password/confirm": {
            "post": {
                "tags": ["Auth"],
                "summary": "Confirm a password reset with the emailed code",
                "responses": {
                    "200": {"description": "Password updated"},
                    "401": {"description": "Wrong or expired code"}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Return the authenticated account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Account info"}
                }
            }
        },
        "/api/v1/applicants": {
            "get": {
                "tags": ["Applicants"],
                "summary": "List applicants",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "gradeLevel", "in": "query", "type": "integer"},
                    {"name": "strand", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated applicants", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/applicants/{id}": {
            "get": {
                "tags": ["Applicants"],
                "summary": "Get applicant by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Applicant"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Applicants"],
                "summary": "Delete an applicant and their documents",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/api/v1/applicants/{id}/approve": {
            "post": {
                "tags": ["Applicants"],
                "summary": "Approve an applicant and mint the student account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "201": {"description": "Student created"},
                    "409": {"description": "Duplicate LRN or already approved"}
                }
            }
        },
        "/api/v1/applicants/{id}/reject": {
            "post": {
                "tags": ["Applicants"],
                "summary": "Reject an applicant with a reason",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Applicant rejected"}
                }
            }
        },
        "/api/v1/applicants/{id}/documents/{kind}/url": {
            "get": {
                "tags": ["Files"],
                "summary": "Issue a signed download URL for an applicant document",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "kind", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Signed URL and expiry"}
                }
            }
        },
        "/files/signed": {
            "get": {
                "tags": ["Files"],
                "summary": "Download a file referenced by a signed token",
                "parameters": [{"name": "token", "in": "query", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "File contents"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/api/v1/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "gradeLevel", "in": "query", "type": "integer"},
                    {"name": "strand", "in": "query", "type": "string"},
                    {"name": "section", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated students", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Student"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student record, applying enrollment transitions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Updated student"},
                    "412": {"description": "Missing LRN blocks enrollment"}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/api/v1/sections": {
            "get": {
                "tags": ["Sections"],
                "summary": "List sections",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "gradeLevel", "in": "query", "type": "integer"},
                    {"name": "strand", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated sections", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sections"],
                "summary": "Create a section",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Section created"},
                    "409": {"description": "Name already in use"}
                }
            }
        },
        "/api/v1/sections/{id}": {
            "get": {
                "tags": ["Sections"],
                "summary": "Get section by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Section"}
                }
            },
            "put": {
                "tags": ["Sections"],
                "summary": "Update a section, re-placing its students on critical changes",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Updated section"}
                }
            },
            "delete": {
                "tags": ["Sections"],
                "summary": "Delete a section",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/api/v1/sections/{id}/students/{studentId}/confirm": {
            "post": {
                "tags": ["Sections"],
                "summary": "Confirm a section member's enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "studentId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Student confirmed"},
                    "412": {"description": "Student is not a member of the section"}
                }
            }
        },
        "/api/v1/sections/{id}/enrollment-list": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export a section's enrollment list as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered export"}
                }
            }
        },
        "/api/v1/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "gradeLevel", "in": "query", "type": "integer"},
                    {"name": "strand", "in": "query", "type": "string"},
                    {"name": "track", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated subjects", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create a subject and assign it to matching enrolled students",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Subject created"},
                    "409": {"description": "Code already in use"}
                }
            }
        },
        "/api/v1/subjects/bulk": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Create multiple subjects in one request",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Subjects created"}
                }
            }
        },
        "/api/v1/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Subject"}
                }
            },
            "put": {
                "tags": ["Subjects"],
                "summary": "Update a subject and resync student assignments",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Updated subject"}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Delete a subject and strip it from holders",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/api/v1/subjects/{id}/offerings": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Add a section offering with its schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "201": {"description": "Offering added"},
                    "409": {"description": "Section already offered"}
                }
            }
        },
        "/api/v1/subjects/{id}/offerings/{offeringId}": {
            "put": {
                "tags": ["Subjects"],
                "summary": "Update an offering's schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "offeringId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Offering updated"}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Remove a section offering",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "offeringId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Offering removed"}
                }
            }
        },
        "/api/v1/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List staff accounts",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated users", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create a staff account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "User created"}
                }
            }
        },
        "/api/v1/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get staff account by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "User"}
                }
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update a staff account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Updated user"}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete a staff account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/api/v1/announcements": {
            "get": {
                "tags": ["Announcements"],
                "summary": "List active announcements",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated announcements", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Announcements"],
                "summary": "Publish an announcement",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Announcement created"}
                }
            }
        },
        "/api/v1/announcements/{id}": {
            "get": {
                "tags": ["Announcements"],
                "summary": "Get announcement by ID",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Announcement"}
                }
            },
            "put": {
                "tags": ["Announcements"],
                "summary": "Update an announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Updated announcement"}
                }
            },
            "delete": {
                "tags": ["Announcements"],
                "summary": "Delete an announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/api/v1/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Aggregate enrollment statistics",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Statistics snapshot"}
                }
            }
        }
    },
    "definitions": {
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
