package config

// Schema is the JSON schema for validating configuration files.
// Legacy documents use "path" for the destination root, "backup" for the
// entry list and "path"/"from" for an entry's source.
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "definitions": {
        "sources": {
            "oneOf": [
                {"type": "string"},
                {"type": "array", "items": {"type": "string"}}
            ]
        },
        "entry": {
            "type": "object",
            "properties": {
                "source": {"$ref": "#/definitions/sources"},
                "path": {"$ref": "#/definitions/sources"},
                "from": {"$ref": "#/definitions/sources"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "compression": {
                    "type": "string",
                    "enum": ["", "none", "solid", "7z", "7zip", "zip"]
                },
                "subfolder": {"type": "string"},
                "match": {"type": "string"},
                "rename": {"type": "string"},
                "keep": {
                    "type": "integer",
                    "minimum": 0
                },
                "active": {"type": "boolean"}
            }
        },
        "entries": {
            "type": "array",
            "items": {"$ref": "#/definitions/entry"}
        }
    },
    "properties": {
        "destinationRoot": {
            "type": "string",
            "description": "Directory where backups will be stored"
        },
        "path": {
            "type": "string",
            "description": "Legacy name of destinationRoot"
        },
        "entries": {"$ref": "#/definitions/entries"},
        "backup": {"$ref": "#/definitions/entries"}
    },
    "anyOf": [
        {"required": ["destinationRoot"]},
        {"required": ["path"]}
    ]
}`
