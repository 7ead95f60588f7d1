package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/printflow/job-lifecycle/pkg/api"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/middleware"

	"github.com/printflow/job-lifecycle/internal/application"
)

type stageRequest struct {
	Department string `json:"department" binding:"required"`
	Status     string `json:"status"`
	Progress   int    `json:"progress" binding:"min=0,max=100"`
	AssignedTo string `json:"assignedTo" binding:"safe_string"`
}

type createJobRequest struct {
	JobCardID   string         `json:"jobCardId" binding:"required,job_card_id"`
	Title       string         `json:"title" binding:"safe_string"`
	Customer    string         `json:"customer" binding:"safe_string"`
	Quantity    int            `json:"quantity" binding:"required,min=1"`
	Priority    string         `json:"priority" binding:"priority"`
	ProcessType string         `json:"processType" binding:"safe_string"`
	DueDate     time.Time      `json:"dueDate" binding:"required"`
	Stages      []stageRequest `json:"stages" binding:"dive"`
}

type transitionRequest struct {
	Domain    string `json:"domain" binding:"required,status_domain"`
	ToStatus  string `json:"toStatus" binding:"required"`
	ActorID   string `json:"actorId"`
	ActorRole string `json:"actorRole"`
	Notes     string `json:"notes" binding:"safe_string"`
}

type updateStageRequest struct {
	Status     string  `json:"status" binding:"required"`
	Progress   *int    `json:"progress" binding:"omitempty,min=0,max=100"`
	AssignedTo *string `json:"assignedTo"`
}

type assignRequest struct {
	AssignedTo string `json:"assignedTo" binding:"required,safe_string"`
	AssignedBy string `json:"assignedBy"`
	Notes      string `json:"notes" binding:"safe_string"`
}

type reassignRequest struct {
	AssignedTo       string `json:"assignedTo" binding:"required,safe_string"`
	PreviousAssignee string `json:"previousAssignee" binding:"required,safe_string"`
	AssignedBy       string `json:"assignedBy"`
	Notes            string `json:"notes" binding:"safe_string"`
}

type unassignRequest struct {
	AssignedBy string `json:"assignedBy"`
	Notes      string `json:"notes" binding:"safe_string"`
}

// actorOr returns explicit, else the actor named by the request headers
func actorOr(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	actorID, _ := middleware.GetActor(c)
	return actorID
}

func createJobHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req createJobRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.CreateJobCommand{
			JobCardID:   req.JobCardID,
			Title:       req.Title,
			Customer:    req.Customer,
			Quantity:    req.Quantity,
			Priority:    req.Priority,
			ProcessType: req.ProcessType,
			DueDate:     req.DueDate,
			CreatedBy:   actorOr(c, ""),
		}
		for _, s := range req.Stages {
			cmd.Stages = append(cmd.Stages, application.StageInput{
				Department: s.Department,
				Status:     s.Status,
				Progress:   s.Progress,
				AssignedTo: s.AssignedTo,
			})
		}

		job, err := service.CreateJob(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, job)
	}
}

func getJobHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		job, err := service.GetJob(c.Request.Context(), application.GetJobQuery{JobID: c.Param("jobId")})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func listJobsHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)
		query := application.ListJobsQuery{
			Status:     c.Query("status"),
			Department: c.Query("department"),
			Priority:   c.Query("priority"),
			AssignedTo: c.Query("assignedTo"),
			Page:       page.Page,
			PageSize:   page.PageSize,
		}

		jobs, total, err := service.ListJobs(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(jobs, page.Page, page.PageSize, total))
	}
}

func transitionJobHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req transitionRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		actorRole := req.ActorRole
		if actorRole == "" {
			_, actorRole = middleware.GetActor(c)
		}

		job, err := service.TransitionJob(c.Request.Context(), application.TransitionJobCommand{
			JobID:     c.Param("jobId"),
			Domain:    req.Domain,
			ToStatus:  req.ToStatus,
			ActorID:   actorOr(c, req.ActorID),
			ActorRole: actorRole,
			Notes:     req.Notes,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func nextStatusesHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		next, err := service.NextStatuses(c.Request.Context(), application.NextStatusesQuery{
			JobID:  c.Param("jobId"),
			Domain: c.Param("domain"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, next)
	}
}

func updateStageHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req updateStageRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		job, err := service.UpdateStage(c.Request.Context(), application.UpdateStageCommand{
			JobID:      c.Param("jobId"),
			Department: c.Param("department"),
			Status:     req.Status,
			Progress:   req.Progress,
			AssignedTo: req.AssignedTo,
			ActorID:    actorOr(c, ""),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

func getProgressHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		progress, err := service.GetWorkflowProgress(c.Request.Context(), application.GetJobQuery{JobID: c.Param("jobId")})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, progress)
	}
}

func assignJobHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req assignRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.AssignJob(c.Request.Context(), application.AssignJobCommand{
			JobID:      c.Param("jobId"),
			AssignedTo: req.AssignedTo,
			AssignedBy: actorOr(c, req.AssignedBy),
			Notes:      req.Notes,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func reassignJobHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req reassignRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.ReassignJob(c.Request.Context(), application.ReassignJobCommand{
			JobID:            c.Param("jobId"),
			AssignedTo:       req.AssignedTo,
			AssignedBy:       actorOr(c, req.AssignedBy),
			PreviousAssignee: req.PreviousAssignee,
			Notes:            req.Notes,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func unassignJobHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req unassignRequest
		if c.Request.ContentLength != 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
		}

		result, err := service.UnassignJob(c.Request.Context(), application.UnassignJobCommand{
			JobID:      c.Param("jobId"),
			AssignedBy: actorOr(c, req.AssignedBy),
			Notes:      req.Notes,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func assignmentHistoryHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		order := api.ParseSortOrder(c, api.SortAsc)
		records, err := service.GetAssignmentHistory(c.Request.Context(), application.AssignmentHistoryQuery{
			JobID:      c.Param("jobId"),
			Descending: order == api.SortDesc,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, records)
	}
}

func departmentStatsHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		stats, err := service.GetDepartmentStats(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

func stateMachineHandler(service *application.JobLifecycleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		machine, err := service.GetStateMachine(c.Request.Context(), application.StateMachineQuery{Domain: c.Param("domain")})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, machine)
	}
}
