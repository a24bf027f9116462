package controllers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/access"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/billing"
)

const (
	statsCacheKey = "larinai:superadmin:stats"
	statsCacheTTL = time.Minute
)

// SuperadminController serves the superadmin dashboard API.
type SuperadminController struct {
	repos   *repository.Repositories
	access  *access.Service
	billing *billing.Service
	cache   StatsCache
	jobs    QueueSizer
}

// Stats is the dashboard summary.
type Stats struct {
	Users               int64            `json:"users"`
	UsersByRole         map[string]int64 `json:"usersByRole"`
	PendingRequests     int64            `json:"pendingRequests"`
	Activations         int64            `json:"activations"`
	ActiveSubscriptions int64            `json:"activeSubscriptions"`
	QueuedJobs          int64            `json:"queuedJobs"`
	GeneratedAt         time.Time        `json:"generatedAt"`
}

func (s *SuperadminController) HandleUsers(c *fiber.Ctx) error {
	const op = "superadmin.Users"
	ctx := c.UserContext()
	page, offset := pagination(c)

	var (
		users []models.UserProfile
		total int64
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		users, total, err = s.repos.Profile.Search(ctx, q, offset, pageSize)
	} else {
		users, err = s.repos.Profile.List(ctx, offset, pageSize)
		if err == nil {
			total, err = s.repos.Profile.Count(ctx)
		}
	}
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to list users", err))
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"users":      users,
		"page":       page,
		"total":      total,
		"totalPages": totalPages(total),
	})
}

// HandleRequests lists access requests; done=true|false narrows the list.
func (s *SuperadminController) HandleRequests(c *fiber.Ctx) error {
	const op = "superadmin.Requests"
	page, offset := pagination(c)

	filter := repository.RequestFilter{}
	switch c.Query("done") {
	case "":
	case "true":
		v := true
		filter.Done = &v
	case "false":
		v := false
		filter.Done = &v
	default:
		return invalid(c, op, "done must be true or false")
	}

	list, total, err := s.repos.Request.List(c.UserContext(), filter, offset, pageSize)
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to list requests", err))
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"requests":   list,
		"page":       page,
		"total":      total,
		"totalPages": totalPages(total),
	})
}

func (s *SuperadminController) HandleFunctions(c *fiber.Ctx) error {
	list, err := s.access.ListFunctions(c.UserContext(), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "functions": list})
}

// HandleToggleRequest sets the done flag of an access request. Auth and role
// are checked by middleware before the id and body.
func (s *SuperadminController) HandleToggleRequest(c *fiber.Ctx) error {
	const op = "superadmin.ToggleRequest"

	id, ok := parseID(c, "id")
	if !ok {
		return invalid(c, op, "request id must be numeric")
	}
	var req struct {
		Done *bool `json:"done"`
	}
	if err := c.BodyParser(&req); err != nil || req.Done == nil {
		return invalid(c, op, "body must be {\"done\": boolean}")
	}

	row, err := s.access.ToggleRequestDone(c.UserContext(), id, *req.Done)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "requestId": row.ID, "done": *req.Done})
}

func (s *SuperadminController) HandleStats(c *fiber.Ctx) error {
	if s.cache != nil {
		if raw, err := s.cache.Get(statsCacheKey); err == nil && raw != "" {
			var cached Stats
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return c.JSON(fiber.Map{"success": true, "stats": cached, "cached": true})
			}
		}
	}

	stats, err := s.collectStats(c)
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, "superadmin.Stats", "failed to collect stats", err))
	}
	if s.cache != nil {
		if b, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(statsCacheKey, string(b), statsCacheTTL); err != nil {
				log.Warnf("[Superadmin] Failed to cache stats: %v", err)
			}
		}
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats, "cached": false})
}

func (s *SuperadminController) collectStats(c *fiber.Ctx) (*Stats, error) {
	stats := &Stats{GeneratedAt: time.Now().UTC()}
	g, ctx := errgroup.WithContext(c.UserContext())

	g.Go(func() (err error) {
		stats.Users, err = s.repos.Profile.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.UsersByRole, err = s.repos.Profile.CountByRole(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingRequests, err = s.repos.Request.CountPending(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Activations, err = s.repos.Activation.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveSubscriptions, err = s.billing.CountActiveSubscriptions(ctx)
		return err
	})
	if s.jobs != nil {
		g.Go(func() error {
			// queue size is informative; Redis trouble must not hide the dashboard
			n, err := s.jobs.QueuedJobs(ctx)
			if err != nil {
				log.Warnf("[Superadmin] Queue size unavailable: %v", err)
				return nil
			}
			stats.QueuedJobs = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
