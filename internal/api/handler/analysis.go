package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/repo_audit_server/internal/api/middleware"
	"github.com/qs3c/repo_audit_server/internal/model/dto"
	"github.com/qs3c/repo_audit_server/internal/pkg/response"
	"github.com/qs3c/repo_audit_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Start 发起仓库分析
// POST /api/v1/analyses
func (h *AnalysisHandler) Start(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.StartAnalysis(c.Request.Context(), userID, req.Owner, req.Repo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRepo):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "任务已创建", resp)
}

// BatchStart 批量发起仓库分析
// POST /api/v1/analyses/batch
func (h *AnalysisHandler) BatchStart(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.BatchStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.BatchStart(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBatchTooLarge):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrInvalidRepo):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "批量任务已创建", resp)
}

// Get 查询任务状态
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	status, err := h.analysisService.GetJobStatus(userID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrJobPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, status)
}

// History 历史分析记录
// GET /api/v1/analyses/history
func (h *AnalysisHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.analysisService.History(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}
