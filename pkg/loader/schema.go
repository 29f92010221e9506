package loader

// EditorDocumentSchema is the JSON schema for editor documents
const EditorDocumentSchema = `
{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowstudio.local/schemas/editor-document.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "workflow": {
      "type": "object",
      "properties": {
        "name": {
          "type": "string"
        },
        "description": {
          "type": "string"
        },
        "version": {
          "type": "number",
          "minimum": 0
        },
        "schemaVersion": {
          "type": "number"
        },
        "inputParameters": {
          "type": "array",
          "items": {
            "type": "string"
          }
        },
        "outputParameters": {
          "type": "object"
        },
        "timeoutSeconds": {
          "type": "number",
          "minimum": 0
        },
        "timeoutPolicy": {
          "type": "string",
          "enum": ["TIME_OUT_WF", "ALERT_ONLY"]
        },
        "restartable": {
          "type": "boolean"
        },
        "ownerEmail": {
          "type": "string"
        }
      }
    },
    "nodes": {
      "type": "array",
      "items": {
        "$ref": "#/$defs/node"
      }
    }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {
          "type": "string"
        },
        "type": {
          "type": "string"
        },
        "taskType": {
          "type": "string"
        },
        "label": {
          "type": "string"
        },
        "position": {
          "type": "object",
          "properties": {
            "x": {
              "type": "number"
            },
            "y": {
              "type": "number"
            }
          }
        },
        "config": {
          "type": ["object", "null"]
        }
      }
    }
  }
}
`

// DefinitionSchema is the JSON schema for engine workflow definitions
const DefinitionSchema = `
{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowstudio.local/schemas/workflow-definition.json",
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "name": {
      "type": "string"
    },
    "version": {
      "type": "number",
      "minimum": 0
    },
    "tasks": {
      "type": "array",
      "items": {
        "$ref": "#/$defs/task"
      }
    }
  },
  "$defs": {
    "task": {
      "type": "object",
      "required": ["taskReferenceName", "type"],
      "properties": {
        "name": {
          "type": "string"
        },
        "taskReferenceName": {
          "type": "string",
          "minLength": 1
        },
        "type": {
          "type": "string",
          "minLength": 1
        },
        "inputParameters": {
          "type": "object"
        },
        "decisionCases": {
          "type": "object",
          "additionalProperties": {
            "type": "array",
            "items": {
              "$ref": "#/$defs/task"
            }
          }
        },
        "defaultCase": {
          "type": "array",
          "items": {
            "$ref": "#/$defs/task"
          }
        },
        "forkTasks": {
          "type": "array",
          "items": {
            "type": "array",
            "items": {
              "$ref": "#/$defs/task"
            }
          }
        },
        "loopOver": {
          "type": "array",
          "items": {
            "$ref": "#/$defs/task"
          }
        }
      }
    }
  }
}
`
