package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/http/response"
	"github.com/yungbote/nutrition-etl/internal/modules/quality"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/ctxutil"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type QualityHandler struct {
	reports repos.QualityReportRepo
	log     *logger.Logger
}

func NewQualityHandler(reports repos.QualityReportRepo, baseLog *logger.Logger) *QualityHandler {
	return &QualityHandler{
		reports: reports,
		log:     baseLog.With("handler", "QualityHandler"),
	}
}

type reportSummary struct {
	ReportID  string    `json:"report_id"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Success   bool      `json:"success"`
	Admitted  bool      `json:"admitted"`
}

// GET /api/quality/reports?limit=N
func (h *QualityHandler) ListReports(c *gin.Context) {
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			response.RespondErr(c, fmt.Errorf("%w: limit must be between 1 and 200", etlerr.ErrInvalidArgument))
			return
		}
		limit = n
	}
	rows, err := h.reports.ListRecent(dbctx.Context{Ctx: c.Request.Context()}, limit)
	if err != nil {
		h.log.Error("List quality reports failed", append(ctxutil.LogFields(c.Request.Context()), "error", err)...)
		response.RespondErr(c, err)
		return
	}
	out := make([]reportSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, reportSummary{
			ReportID:  r.ReportID,
			RunID:     r.RunID,
			StartedAt: r.StartedAt,
			Success:   r.Success,
			Admitted:  r.Admitted,
		})
	}
	response.RespondOK(c, gin.H{"reports": out})
}

// GET /api/quality/reports/:id
func (h *QualityHandler) GetReport(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	row, err := h.reports.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		h.log.Error("Get quality report failed", append(ctxutil.LogFields(c.Request.Context()), "report_id", id, "error", err)...)
		response.RespondErr(c, err)
		return
	}
	if row == nil {
		response.RespondErr(c, fmt.Errorf("%w: report %s", etlerr.ErrNotFound, id))
		return
	}
	rep, err := quality.Decode(row.Payload)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, rep)
}
