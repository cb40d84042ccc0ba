package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klippmedia/klipp-engine/engine"
	"github.com/klippmedia/klipp-engine/environment"
	"github.com/klippmedia/klipp-engine/services/ffmpeg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type server struct {
	commands chan<- engine.Command
	hub      *EventHub
	log      zerolog.Logger
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Logger = logger

	backend := ffmpeg.NewBackend(environment.GetFFmpegPath(), environment.GetFFprobePath(), logger)
	eng := engine.New(backend,
		engine.WithLogger(logger),
		engine.WithCacheCapacity(environment.GetPreviewCacheCapacity()),
	)
	worker := engine.NewWorker(eng, environment.GetCommandQueueSize(), environment.GetEventQueueSize(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	hub := NewEventHub()
	go hub.Pump(worker.Events())

	s := &server{commands: worker.Commands(), hub: hub, log: logger}

	router := gin.Default()
	router.Use(cors.Default())

	api := router.Group("/api")
	api.GET("/snapshot", s.getSnapshot)
	api.GET("/events", s.streamEvents)
	api.GET("/schemas", getSchemas)
	api.POST("/commands/:name", s.postCommand)

	addr := environment.GetListenAddr()
	logger.Info().Str("addr", addr).Msg("starting server")
	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func (s *server) getSnapshot(ctx *gin.Context) {
	snapshot := s.hub.LatestSnapshot()
	if snapshot == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no project loaded"})
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}

func (s *server) postCommand(ctx *gin.Context) {
	name := ctx.Param("name")
	prototype, found := commandPrototypes[name]
	if !found {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown command " + name})
		return
	}

	command := prototype()
	if err := ctx.ShouldBindJSON(command); err != nil && err != io.EOF {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := uuid.NewString()
	s.log.Info().Str("request_id", requestID).Str("command", name).Msg("command accepted")

	select {
	case s.commands <- dereference(command):
		ctx.JSON(http.StatusAccepted, gin.H{"request_id": requestID})
	case <-ctx.Request.Context().Done():
		ctx.Status(http.StatusServiceUnavailable)
	}
}

// dereference unwraps the pointer the JSON binder needed so the worker sees
// the same value types the engine tests use.
func dereference(command engine.Command) engine.Command {
	switch c := command.(type) {
	case *engine.Import:
		return *c
	case *engine.SetPlayhead:
		return *c
	case *engine.Split:
		return *c
	case *engine.Cut:
		return *c
	case *engine.MoveSegment:
		return *c
	case *engine.TrimSegmentStart:
		return *c
	case *engine.TrimSegmentEnd:
		return *c
	case *engine.Export:
		return *c
	case *engine.CancelExport:
		return *c
	case *engine.SaveProject:
		return *c
	case *engine.LoadProject:
		return *c
	default:
		return command
	}
}

func (s *server) streamEvents(ctx *gin.Context) {
	subscription := s.hub.Subscribe()
	defer s.hub.Unsubscribe(subscription)

	ctx.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-subscription:
			if !ok {
				return false
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				s.log.Error().Err(err).Msg("marshal event")
				return true
			}
			ctx.SSEvent(event.Type, string(data))
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
