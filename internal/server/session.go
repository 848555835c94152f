package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gaze/internal/engine"
	"github.com/teslashibe/go-gaze/internal/session"
	"github.com/teslashibe/go-gaze/internal/transform"
)

type conditionResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newConditionResponse(c transform.Condition) conditionResponse {
	return conditionResponse{ID: int(c), Name: c.String()}
}

// getConditionHandler returns the active experiment condition
func (s *Server) getConditionHandler(c *fiber.Ctx) error {
	return c.JSON(newConditionResponse(s.engine.Condition()))
}

// putConditionHandler switches the experiment condition. The body is
// {"condition": 3} or {"condition": "SizeChange"}.
func (s *Server) putConditionHandler(c *fiber.Ctx) error {
	var body struct {
		Condition json.RawMessage `json:"condition"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || len(body.Condition) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expected {\"condition\": <id or name>}",
		})
	}

	cond, err := transform.ParseCondition(strings.Trim(string(body.Condition), `"`))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := s.engine.SetCondition(cond); err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, engine.ErrSessionActive) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(newConditionResponse(cond))
}

// sessionHandler returns the recorder state
func (s *Server) sessionHandler(c *fiber.Ctx) error {
	return c.JSON(s.engine.Recorder().Summary())
}

// sessionStartHandler starts a measurement session
func (s *Server) sessionStartHandler(c *fiber.Ctx) error {
	if !s.engine.StartSession() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "session already active",
		})
	}
	return c.JSON(s.engine.Recorder().Summary())
}

// sessionStopHandler stops the active session and exports it
func (s *Server) sessionStopHandler(c *fiber.Ctx) error {
	if !s.engine.StopSession(c.UserContext()) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "no active session",
		})
	}
	return c.JSON(s.engine.Recorder().Summary())
}

// sessionExportHandler downloads the last stopped session as CSV
func (s *Server) sessionExportHandler(c *fiber.Ctx) error {
	exp, ok := s.engine.Recorder().LastExport()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no finished session",
		})
	}

	var buf bytes.Buffer
	if err := session.WriteCSV(&buf, exp.Entries); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	c.Attachment(session.FileName(exp))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}
