package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"
	"github.com/klippmedia/klipp-engine/engine"
	"github.com/klippmedia/klipp-engine/project"
	"github.com/samber/lo"
)

type CommandSchema struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
}

type SchemaResponse struct {
	ProjectFile *jsonschema.Schema `json:"project_file"`
	Commands    []CommandSchema    `json:"commands"`
}

var commandPrototypes = map[string]func() engine.Command{
	"import":             func() engine.Command { return &engine.Import{} },
	"set_playhead":       func() engine.Command { return &engine.SetPlayhead{} },
	"split":              func() engine.Command { return &engine.Split{} },
	"cut":                func() engine.Command { return &engine.Cut{} },
	"move_segment":       func() engine.Command { return &engine.MoveSegment{} },
	"trim_segment_start": func() engine.Command { return &engine.TrimSegmentStart{} },
	"trim_segment_end":   func() engine.Command { return &engine.TrimSegmentEnd{} },
	"export":             func() engine.Command { return &engine.Export{} },
	"cancel_export":      func() engine.Command { return &engine.CancelExport{} },
	"save_project":       func() engine.Command { return &engine.SaveProject{} },
	"load_project":       func() engine.Command { return &engine.LoadProject{} },
}

func getSchemas(ctx *gin.Context) {
	names := lo.Keys(commandPrototypes)
	commands := lo.Map(names, func(name string, _ int) CommandSchema {
		return CommandSchema{
			Name:   name,
			Schema: jsonschema.Reflect(commandPrototypes[name]()),
		}
	})

	ctx.JSON(http.StatusOK, SchemaResponse{
		ProjectFile: jsonschema.Reflect(&project.ProjectFile{}),
		Commands:    commands,
	})
}
