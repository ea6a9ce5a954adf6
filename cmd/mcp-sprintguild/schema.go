package main

import (
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type ListBoardInput struct{}

type AddTaskInput struct {
	SprintID    string `json:"sprintId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type MoveTaskInput struct {
	TaskID   string `json:"taskId"`
	SprintID string `json:"sprintId"`
	Index    int    `json:"index"`
}

type ArchiveTaskInput struct {
	TaskID string `json:"taskId"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

type SearchArchiveInput struct {
	Query    string `json:"query,omitempty"`
	Priority string `json:"priority,omitempty"`
	SprintID string `json:"sprintId,omitempty"`
}

type GeneratePromptInput struct {
	SprintID string `json:"sprintId"`
}

type SubmitResponseInput struct {
	LogID    string `json:"logId"`
	Response string `json:"response"`
}

var priorityEnum = []any{"low", "medium", "high"}

var ListBoardInputSchema = &jsonschema.Schema{
	Type:                 "object",
	Properties:           map[string]*jsonschema.Schema{},
	AdditionalProperties: boolSchema(false),
}

var AddTaskInputSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"sprintId":    {Type: "string", Description: "Sprint to add the task to"},
		"title":       {Type: "string", Description: "Task title"},
		"description": {Type: "string", Description: "Task description"},
		"priority":    {Type: "string", Description: "Task priority (default medium)", Enum: priorityEnum},
	},
	Required:             []string{"sprintId", "title"},
	AdditionalProperties: boolSchema(false),
}

var MoveTaskInputSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"taskId":   {Type: "string", Description: "Task to move"},
		"sprintId": {Type: "string", Description: "Target sprint"},
		"index":    {Type: "integer", Description: "Zero-based position in the target sprint"},
	},
	Required:             []string{"taskId", "sprintId", "index"},
	AdditionalProperties: boolSchema(false),
}

var ArchiveTaskInputSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"taskId": {Type: "string", Description: "Task to archive"},
		"actor":  {Type: "string", Description: "Who is archiving the task"},
		"reason": {Type: "string", Description: "Why the task is archived"},
	},
	Required:             []string{"taskId", "actor"},
	AdditionalProperties: boolSchema(false),
}

var SearchArchiveInputSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"query":    {Type: "string", Description: "Case-insensitive text matched against title, description and tags"},
		"priority": {Type: "string", Description: "Only tasks with this priority", Enum: priorityEnum},
		"sprintId": {Type: "string", Description: "Only tasks from this sprint"},
	},
	AdditionalProperties: boolSchema(false),
}

var GeneratePromptInputSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"sprintId": {Type: "string", Description: "Sprint to report on"},
	},
	Required:             []string{"sprintId"},
	AdditionalProperties: boolSchema(false),
}

var SubmitResponseInputSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"logId":    {Type: "string", Description: "Execution log returned by sprintguild_generate_prompt"},
		"response": {Type: "string", Description: "Answer naming each finished task by its exact title followed by \"done\" or \"completed\""},
	},
	Required:             []string{"logId", "response"},
	AdditionalProperties: boolSchema(false),
}

func boolSchema(b bool) *jsonschema.Schema {
	if b {
		return &jsonschema.Schema{}
	}
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}
