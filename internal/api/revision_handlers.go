package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ksred/tienda-moves/internal/database"
	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

// RevisionList is the body of GET /api/v1/revisions
type RevisionList struct {
	Revisions []database.RevisionStatus `json:"revisions"`
	Orphans   []string                  `json:"orphans"`
	Total     int                       `json:"total"`
	Pending   int                       `json:"pending"`
}

// RevisionDetail is the body of GET /api/v1/revisions/:id
type RevisionDetail struct {
	Revision *revision.Revision `json:"revision"`
	Applied  bool               `json:"applied"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// listRevisionsHandler godoc
// @Summary List revisions
// @Description List every revision file with its ledger state, plus ledger rows without a file
// @Tags revisions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RevisionList
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/revisions [get]
func (s *Server) listRevisionsHandler(c *gin.Context) {
	status, err := s.manager.Status(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	pending := 0
	for _, r := range status.Revisions {
		if !r.Applied {
			pending++
		}
	}

	c.JSON(http.StatusOK, RevisionList{
		Revisions: status.Revisions,
		Orphans:   status.Orphans,
		Total:     len(status.Revisions),
		Pending:   pending,
	})
}

// getRevisionHandler godoc
// @Summary Get a revision
// @Description Show the operations of one revision. The id may be a numeric prefix such as 2
// @Tags revisions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Revision id or prefix"
// @Success 200 {object} RevisionDetail
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/revisions/{id} [get]
func (s *Server) getRevisionHandler(c *gin.Context) {
	ctx := c.Request.Context()

	rev, err := s.manager.Read(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	applied, err := s.manager.Ledger().IsApplied(ctx, rev.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RevisionDetail{Revision: rev, Applied: applied})
}

func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case utils.IsNotFoundError(err), utils.IsAmbiguousError(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		subject, _ := getSubjectFromContext(c)
		s.logger.Error().Err(err).Str("subject", subject).Msg("Revision request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
