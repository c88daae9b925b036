// Package docs holds the registered OpenAPI document served under /swagger/.
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
		"/v1/policies": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Issue an insurance policy",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					}
				]
			}
		},
		"/v1/policies/{policy_id}": {
			"get": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Get a policy",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "policy_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/policies/{policy_id}/premiums": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Pay a policy premium",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "policy_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/policies/{policy_id}/deactivate": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Deactivate a policy",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "policy_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/policies/{policy_id}/claims": {
			"get": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "List claims filed against a policy",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "policy_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/claims": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "File a claim",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					}
				]
			}
		},
		"/v1/claims/{claim_id}": {
			"get": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Get a claim",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "claim_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/claims/{claim_id}/verifications": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Attest a claim as verifier",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "claim_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/claims/{claim_id}/settlement": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Pay a verified claim from a pool",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "claim_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/pools": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Create a community pool",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					}
				]
			}
		},
		"/v1/pools/{pool_id}": {
			"get": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Get a pool",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "pool_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/pools/{pool_id}/stake": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Stake funds into a pool",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "pool_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/pools/{pool_id}/withdraw": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Withdraw staked funds",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "pool_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/admin/pools/{pool_id}/withdraw": {
			"post": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Drain pool custody",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "pool_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/pools/{pool_id}/accounts/{owner}": {
			"get": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Get a staker account",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "pool_id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "owner",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/pools/{pool_id}/reconciliation": {
			"get": {
				"tags": [
					"mutual-insurance"
				],
				"summary": "Check pool conservation",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "pool_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/authz/v1/roles/{subject}": {
			"put": {
				"tags": [
					"authorization"
				],
				"summary": "Assign a role",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "subject",
						"in": "path",
						"required": true
					}
				]
			},
			"get": {
				"tags": [
					"authorization"
				],
				"summary": "Get a subject's role",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "subject",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/authz/v1/roles/{subject}/audit": {
			"get": {
				"tags": [
					"authorization"
				],
				"summary": "List role changes for a subject",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "subject",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/custody/accounts/{account_id}/deposits": {
			"post": {
				"tags": [
					"custody-ledger"
				],
				"summary": "Fund a custody account",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"name": "account_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/custody/accounts/{account_id}": {
			"get": {
				"tags": [
					"custody-ledger"
				],
				"summary": "Get a custody account with recent entries",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "account_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/internal/custody/v1/transfers": {
			"post": {
				"tags": [
					"custody-ledger"
				],
				"summary": "Move funds between custody accounts",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"default": {
						"description": "Error",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"ErrorResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "commonpool API",
	Description:      "Mutual insurance policies, claim verification, community pools and custody.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
