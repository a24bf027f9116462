package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/internal/pkg/access"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

// ManageController serves access requests, activations and the function catalogue.
type ManageController struct {
	access *access.Service
}

func (m *ManageController) HandleCheckRequests(c *fiber.Ctx) error {
	functionID, ok := queryUint(c, "functionId")
	if !ok {
		return invalid(c, "manage.CheckRequests", "functionId must be a positive number")
	}
	status, err := m.access.CheckRequests(c.UserContext(), usercontext.GetUserID(c), functionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "status": status})
}

func (m *ManageController) HandleRequestAccess(c *fiber.Ctx) error {
	var req struct {
		FunctionID uint `json:"functionId" validate:"required"`
	}
	if err := parseBody(c, "manage.RequestAccess", &req); err != nil {
		return respondError(c, err)
	}
	row, created, err := m.access.RequestAccess(c.UserContext(), usercontext.GetUserID(c), req.FunctionID)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "created": created, "request": row})
}

func (m *ManageController) HandleActivateFunction(c *fiber.Ctx) error {
	var req struct {
		FunctionID uint   `json:"functionId" validate:"required"`
		GivenName  string `json:"givenName" validate:"required,max=150"`
	}
	if err := parseBody(c, "manage.ActivateFunction", &req); err != nil {
		return respondError(c, err)
	}
	u := usercontext.GetUserContext(c)
	activation, err := m.access.ActivateFunction(c.UserContext(), u.UserID, u.Role, req.FunctionID, req.GivenName)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "activation": activation})
}

// HandleListFunctions lists the active catalogue.
func (m *ManageController) HandleListFunctions(c *fiber.Ctx) error {
	list, err := m.access.ListFunctions(c.UserContext(), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "functions": list})
}

// HandleFunctionByCode resolves a public code. Only the owner and staff see
// the activation; everybody else gets 404.
func (m *ManageController) HandleFunctionByCode(c *fiber.Ctx) error {
	a, err := m.access.FunctionByPublicCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}
	u := usercontext.GetUserContext(c)
	if a.UserID != u.UserID && !u.IsStaff() {
		return respondError(c, apperr.New(apperr.NotFound, "manage.FunctionByCode", "function not found"))
	}
	return c.JSON(fiber.Map{"success": true, "activation": a, "function": a.Function})
}

func (m *ManageController) HandleListActivations(c *fiber.Ctx) error {
	list, err := m.access.ListActivations(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "activations": list})
}

func (m *ManageController) HandleRenameActivation(c *fiber.Ctx) error {
	const op = "manage.RenameActivation"

	id, ok := parseID(c, "id")
	if !ok {
		return invalid(c, op, "id must be a positive number")
	}
	var req struct {
		GivenName string `json:"givenName" validate:"required,max=150"`
	}
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	if err := m.access.RenameActivation(c.UserContext(), usercontext.GetUserID(c), id, req.GivenName); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "id": id, "givenName": req.GivenName})
}
