package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/data/repos/nutrition"
	"github.com/yungbote/nutrition-etl/internal/http/response"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/ctxutil"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const maxLookupNutrients = 100

type ProductHandler struct {
	lookup repos.LookupRepo
	log    *logger.Logger
}

func NewProductHandler(lookup repos.LookupRepo, baseLog *logger.Logger) *ProductHandler {
	return &ProductHandler{
		lookup: lookup,
		log:    baseLog.With("handler", "ProductHandler"),
	}
}

// GET /api/products/:code?limit=N
func (h *ProductHandler) GetProduct(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		response.RespondErr(c, fmt.Errorf("%w: product code required", etlerr.ErrInvalidArgument))
		return
	}
	limit := nutrition.DefaultLookupNutrients
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLookupNutrients {
			response.RespondErr(c, fmt.Errorf("%w: limit must be between 1 and %d", etlerr.ErrInvalidArgument, maxLookupNutrients))
			return
		}
		limit = n
	}

	out, err := h.lookup.Lookup(dbctx.Context{Ctx: c.Request.Context()}, code, limit)
	if err != nil {
		h.log.Error("Product lookup failed", append(ctxutil.LogFields(c.Request.Context()), "code", code, "error", err)...)
		response.RespondErr(c, err)
		return
	}
	if out == nil {
		response.RespondErr(c, fmt.Errorf("%w: product %s", etlerr.ErrNotFound, code))
		return
	}
	response.RespondOK(c, out)
}
