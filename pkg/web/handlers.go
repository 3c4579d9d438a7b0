package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-facecues/internal/log"
	"github.com/teslashibe/go-facecues/pkg/facemesh"
	"github.com/teslashibe/go-facecues/pkg/hub"
	"github.com/teslashibe/go-facecues/pkg/signals"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with a uuid, honouring one sent by the client.
func requestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.Locals("request_id", id)
	c.Set(requestIDHeader, id)
	return c.Next()
}

func getRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	RequestID string   `json:"request_id"`
	Error     string   `json:"error"`
	Fields    []string `json:"fields,omitempty"`
}

func fail(c *fiber.Ctx, status int, err error) error {
	resp := ErrorResponse{RequestID: getRequestID(c), Error: err.Error()}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = "validation failed"
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return c.Status(status).JSON(resp)
}

// analyzeStatus maps an Analyze error to an HTTP status.
func analyzeStatus(err error) int {
	if errors.Is(err, facemesh.ErrInvalidDimensions) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// handleHealth reports liveness and connected websocket clients
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"signal_clients": s.signalHub.ClientCount(),
		"frame_clients":  s.frameHub.ClientCount(),
	})
}

// handleConfig returns the active thresholds
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.analyzer.Config())
}

// handleAnalyze analyzes one frame
func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var frame signals.Frame
	if err := c.BodyParser(&frame); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if err := s.validate.Struct(frame); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	res, err := s.analyzer.Analyze(frame)
	if err != nil {
		return fail(c, analyzeStatus(err), err)
	}

	entry := Entry{RequestID: getRequestID(c), Source: "http", Result: res}
	s.record(entry)
	return c.JSON(entry)
}

// BatchRequest is the body of /api/analyze/batch.
type BatchRequest struct {
	Frames []signals.Frame `json:"frames" validate:"required,min=1,max=256,dive"`
}

// BatchResponse holds results in request order.
type BatchResponse struct {
	RequestID string           `json:"request_id"`
	Results   []signals.Result `json:"results"`
}

// handleAnalyzeBatch analyzes frames on the worker pool
func (s *Server) handleAnalyzeBatch(c *fiber.Ctx) error {
	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	results, err := s.analyzer.AnalyzeBatch(c.UserContext(), req.Frames, s.config.Workers)
	if err != nil {
		return fail(c, analyzeStatus(err), err)
	}

	id := getRequestID(c)
	for _, res := range results {
		s.record(Entry{RequestID: id, Source: "batch", Result: res})
	}
	return c.JSON(BatchResponse{RequestID: id, Results: results})
}

// handleRecent returns the most recent results, oldest first
func (s *Server) handleRecent(c *fiber.Ctx) error {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()
	return c.JSON(s.recent)
}

// handleSignalsWS subscribes a client to every analyzed result
func (s *Server) handleSignalsWS(c *websocket.Conn) {
	hub.NewClient(s.signalHub, c, nil).Run()
}

// handleFramesWS answers each frame message with its result
func (s *Server) handleFramesWS(c *websocket.Conn) {
	session := uuid.NewString()
	logger := log.With("component", "web", "session", session)
	logger.Debug("frame session opened")

	hub.NewClient(s.frameHub, c, func(data []byte) (hub.Message, bool) {
		reply, err := json.Marshal(s.analyzeMessage(session, data))
		if err != nil {
			logger.Warn("encode reply failed", "error", err)
			return hub.Message{}, false
		}
		return hub.NewJSONMessage(reply), true
	}).Run()

	logger.Debug("frame session closed")
}

// FrameReply is the websocket answer to one frame.
type FrameReply struct {
	RequestID string          `json:"request_id"`
	Result    *signals.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (s *Server) analyzeMessage(session string, data []byte) FrameReply {
	reply := FrameReply{RequestID: uuid.NewString()}

	var frame signals.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		reply.Error = "invalid frame: " + err.Error()
		return reply
	}
	if err := s.validate.Struct(frame); err != nil {
		reply.Error = "invalid frame: " + strings.TrimSpace(err.Error())
		return reply
	}
	res, err := s.analyzer.Analyze(frame)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}

	s.record(Entry{RequestID: reply.RequestID, Source: "ws:" + session, Result: res})
	reply.Result = &res
	return reply
}
