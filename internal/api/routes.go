package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/frontdesk"
	"github.com/zulandar/frontdesk/internal/knowledge"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/session"
)

// registerRoutes sets up all routes on the gin router.
func registerRoutes(router *gin.Engine, svc *frontdesk.Service) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": svc.Hub().Subscribers()})
	})
	router.GET("/metrics", gin.WrapH(svc.Metrics().Handler()))

	api := router.Group("/api")
	api.GET("/events", handleSSE(svc.Hub()))

	api.POST("/messages/inbound", handleSubmit(svc))
	api.POST("/messages/outbound", handleSend(svc))

	api.GET("/sessions", handleSessions(svc))
	api.GET("/sessions/:phone/messages", handleMessages(svc))
	api.POST("/sessions/:phone/read", handleMarkRead(svc))
	api.POST("/sessions/:phone/draft", handleDraft(svc))

	api.GET("/contacts", handleContacts(svc))
	api.PUT("/contacts/:phone/kind", handleReclassify(svc))
	api.GET("/employees", handleEmployees(svc))

	api.GET("/jobs", handleJobs(svc))
	api.POST("/jobs", handleCreateJob(svc))
	api.POST("/jobs/draft", handleDraftJob(svc))
	api.POST("/jobs/expire", handleExpire(svc))
	api.GET("/jobs/:id", handleJob(svc))
	api.GET("/jobs/:id/history", handleHistory(svc))
	api.POST("/jobs/:id/hold", handleHold(svc))
	api.POST("/jobs/:id/confirm", handleTransition(svc.Confirm))
	api.POST("/jobs/:id/complete", handleTransition(svc.Complete))
	api.POST("/jobs/:id/cancel", handleTransition(svc.Cancel))

	api.GET("/leave", handleLeave(svc))
	api.GET("/leave/:id/conflicts", handleLeaveConflicts(svc))
	api.POST("/leave/:id/resolve", handleResolve(svc))

	api.GET("/kb", handleKBList(svc))
	api.GET("/kb/search", handleKBSearch(svc))
	api.POST("/kb", handleKBSave(svc))
	api.PUT("/kb/:id", handleKBSave(svc))
	api.DELETE("/kb/:id", handleKBDelete(svc))
}

func handleSubmit(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in frontdesk.Inbound
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
		out, err := svc.SubmitMessage(c.Request.Context(), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		status := http.StatusCreated
		if out.Duplicate {
			status = http.StatusOK
		}
		c.JSON(status, out)
	}
}

type sendRequest struct {
	Phone string `json:"phone" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

func handleSend(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		msg, err := svc.SendMessage(c.Request.Context(), req.Phone, req.Body)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleSessions(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := session.ListFilters{
			Kind:       models.ContactKind(c.Query("kind")),
			Query:      c.Query("q"),
			UnreadOnly: c.Query("unread") == "1" || c.Query("unread") == "true",
		}
		sessions, err := svc.Sessions(c.Request.Context(), f)
		if err != nil {
			abortWithError(c, err)
			return
		}
		unread, err := svc.TotalUnread(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total_unread": unread})
	}
}

func handleMessages(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := intQuery(c, "limit", 0)
		if err != nil {
			badRequest(c, err)
			return
		}
		msgs, err := svc.Messages(c.Request.Context(), c.Param("phone"), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func handleMarkRead(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.MarkRead(c.Request.Context(), c.Param("phone")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleDraft(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.Draft(c.Request.Context(), c.Param("phone"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func handleContacts(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		contacts, err := svc.Contacts(c.Request.Context(), models.ContactKind(c.Query("kind")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, contacts)
	}
}

type reclassifyRequest struct {
	Kind models.ContactKind `json:"kind" binding:"required"`
}

func handleReclassify(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reclassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		contact, err := svc.ReclassifyContact(c.Request.Context(), c.Param("phone"), req.Kind)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, contact)
	}
}

func handleEmployees(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		emps, err := svc.Employees(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, emps)
	}
}

func handleJobs(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := dispatch.ListFilters{
			State:      models.JobState(c.Query("state")),
			EmployeeID: c.Query("employee"),
		}
		var err error
		if f.From, err = timeQuery(c, "from"); err != nil {
			badRequest(c, err)
			return
		}
		if f.To, err = timeQuery(c, "to"); err != nil {
			badRequest(c, err)
			return
		}
		jobs, err := svc.Jobs(c.Request.Context(), f)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, jobs)
	}
}

type createJobRequest struct {
	Title        string    `json:"title" binding:"required"`
	Start        time.Time `json:"start" binding:"required"`
	End          time.Time `json:"end" binding:"required"`
	Address      string    `json:"address"`
	ContactPhone string    `json:"contact_phone"`
	Notes        string    `json:"notes"`
}

func handleCreateJob(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		job, err := svc.CreateJob(c.Request.Context(), dispatch.CreateOpts{
			Title:        req.Title,
			Window:       models.Window{Start: req.Start, End: req.End},
			Address:      req.Address,
			ContactPhone: req.ContactPhone,
			Notes:        req.Notes,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

type draftJobRequest struct {
	Phone string    `json:"phone" binding:"required"`
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func handleDraftJob(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req draftJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		job, err := svc.DraftJob(c.Request.Context(), req.Phone, models.Window{Start: req.Start, End: req.End})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

func handleExpire(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		expired, err := svc.ExpireHolds(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		if expired == nil {
			expired = []dispatch.ExpiredHold{}
		}
		c.JSON(http.StatusOK, expired)
	}
}

func handleJob(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.Job(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func handleHistory(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svc.JobHistory(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

type holdRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
}

func handleHold(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req holdRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		job, err := svc.Hold(c.Request.Context(), c.Param("id"), req.EmployeeID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func handleTransition(fn func(ctx context.Context, jobID string) (*models.Job, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := fn(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func handleLeave(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := svc.LeaveRequests(c.Request.Context(), models.LeaveStatus(c.Query("status")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func handleLeaveConflicts(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uintParam(c, "id")
		if err != nil {
			badRequest(c, err)
			return
		}
		jobs, err := svc.LeaveConflicts(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if jobs == nil {
			jobs = []models.Job{}
		}
		c.JSON(http.StatusOK, jobs)
	}
}

type resolveRequest struct {
	Action models.Resolution `json:"action" binding:"required"`
}

func handleResolve(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uintParam(c, "id")
		if err != nil {
			badRequest(c, err)
			return
		}
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.ResolveLeaveConflict(c.Request.Context(), id, req.Action)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleKBList(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.Knowledge(c.Request.Context(), c.Query("q"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func handleKBSearch(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := intQuery(c, "max", knowledge.DefaultSearchLimit)
		if err != nil {
			badRequest(c, err)
			return
		}
		entries, err := svc.SearchKnowledge(c.Request.Context(), c.Query("q"), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if entries == nil {
			entries = []models.KBEntry{}
		}
		c.JSON(http.StatusOK, entries)
	}
}

type kbRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
	Tags    string `json:"tags"`
	Enabled *bool  `json:"enabled"`
}

func handleKBSave(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id uint
		if c.Param("id") != "" {
			var err error
			if id, err = uintParam(c, "id"); err != nil {
				badRequest(c, err)
				return
			}
		}
		var req kbRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		entry, err := svc.SaveKnowledge(c.Request.Context(), knowledge.Entry{
			ID:      id,
			Title:   req.Title,
			Content: req.Content,
			Tags:    req.Tags,
			Enabled: req.Enabled == nil || *req.Enabled,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		status := http.StatusOK
		if id == 0 {
			status = http.StatusCreated
		}
		c.JSON(status, entry)
	}
}

func handleKBDelete(svc *frontdesk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uintParam(c, "id")
		if err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.DeleteKnowledge(c.Request.Context(), id); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return n, nil
}

func uintParam(c *gin.Context, key string) (uint, error) {
	v := c.Param(key)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a valid id", key, v)
	}
	return uint(n), nil
}

func timeQuery(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q is not an RFC 3339 time", key, v)
	}
	return t, nil
}
