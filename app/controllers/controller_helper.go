package controllers

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/internal/pkg/apperr"
)

const pageSize = 20

var validate = validator.New()

// respondError logs err server side and writes the JSON error body.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	} else {
		log.Debugf("[API] %s %s rejected: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   kind,
		"message": apperr.Message(err),
	})
}

func invalid(c *fiber.Ctx, op, message string) error {
	return respondError(c, apperr.New(apperr.InvalidInput, op, message))
}

// parseBody decodes and validates a JSON body into dst.
func parseBody(c *fiber.Ctx, op string, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, op, "invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, op, validationMessage(err), err)
	}
	return nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request body"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// parseID reads a positive numeric route parameter.
func parseID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pagination returns the 1-based page and the row offset for it.
func pagination(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	return page, (page - 1) * pageSize
}

func totalPages(total int64) int64 {
	if total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// GetClientIP determines the client address for hCaptcha, honouring Cloudflare
// and proxy headers. Rate limiting uses c.IP() instead, since callers control
// these headers.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	// X-Forwarded-For can contain a list of IPs - the first one is the original client IP
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(c.Get("X-Real-IP")); real != "" {
		return real
	}
	return strings.TrimPrefix(c.IP(), "::ffff:")
}
