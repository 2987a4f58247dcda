package log

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

type entry struct {
	TS        string         `json:"ts"`
	Level     string         `json:"level"`
	ReqID     string         `json:"req_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Method    string         `json:"method,omitempty"`
	Path      string         `json:"path,omitempty"`
	Component string         `json:"component,omitempty"`
	Action    string         `json:"action,omitempty"`
	Status    int            `json:"status,omitempty"`
	Err       string         `json:"err,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// write accepts a nil fiber context: the sync driver and caches log from
// background goroutines with no request in scope.
func write(level string, c *fiber.Ctx, component, action string, err error, fields map[string]any) {
	e := entry{TS: time.Now().UTC().Format(time.RFC3339), Level: level, Component: component, Action: action, Fields: fields}
	if c != nil {
		e.IP = c.IP()
		e.Method = c.Method()
		e.Path = c.Path()
		e.Status = c.Response().StatusCode()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			e.ReqID = rid
		}
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, _ := json.Marshal(e)
	log.Println(string(b))
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write("info", c, "", action, nil, fields)
}
func Warn(c *fiber.Ctx, action string, fields map[string]any) {
	write("warn", c, "", action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write("error", c, "", action, err, fields)
}

// Component loggers for the non-HTTP parts of the pipeline.

func SyncInfo(action string, fields map[string]any) { write("info", nil, "sync", action, nil, fields) }
func SyncWarn(action string, err error, fields map[string]any) {
	write("warn", nil, "sync", action, err, fields)
}
func StoreWarn(action string, err error, fields map[string]any) {
	write("warn", nil, "store", action, err, fields)
}
func PromoWarn(action string, err error, fields map[string]any) {
	write("warn", nil, "promo", action, err, fields)
}
