package projectservice

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/remote"
)

// Handler serves the project routes.
type Handler struct {
	store *Store
}

// Register mounts the project routes on rg.
func Register(rg *gin.RouterGroup, store *Store) {
	h := &Handler{store: store}

	rg.POST("", h.createProject)
	rg.GET("", h.listProjects)
	rg.GET("/:project_id", h.getProject)
	rg.GET("/:project_id/diagrams", h.listDiagrams)
	rg.POST("/:project_id/diagrams", h.addDiagram)
	rg.GET("/:project_id/diagrams/:diagram_id", h.getDiagram)
	rg.PUT("/:project_id/diagrams/:diagram_id", h.updateDiagram)
	rg.DELETE("/:project_id/diagrams/:diagram_id", h.deleteDiagram)
}

func (h *Handler) createProject(c *gin.Context) {
	var req remote.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.store.CreateProject(req.ID, req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": remote.ProjectFromDomain(p, false)})
}

func (h *Handler) listProjects(c *gin.Context) {
	projects := h.store.ListProjects()
	out := make([]remote.ProjectPayload, len(projects))
	for i, p := range projects {
		out[i] = remote.ProjectFromDomain(p, false)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": out})
}

func (h *Handler) getProject(c *gin.Context) {
	p, err := h.store.Project(c.Param("project_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": remote.ProjectFromDomain(p, true)})
}

func (h *Handler) listDiagrams(c *gin.Context) {
	p, err := h.store.Project(c.Param("project_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]remote.DiagramPayload, len(p.Diagrams))
	for i, d := range p.Diagrams {
		out[i] = remote.DiagramFromDomain(d)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "diagrams": out})
}

func (h *Handler) addDiagram(c *gin.Context) {
	var req remote.DiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	d, err := h.store.AddDiagram(c.Param("project_id"), req.Title, req.Content, domain.DiagramType(req.Type))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "diagram": remote.DiagramFromDomain(d)})
}

func (h *Handler) getDiagram(c *gin.Context) {
	d, err := h.store.Diagram(c.Param("project_id"), domain.DiagramID(c.Param("diagram_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "diagram": remote.DiagramFromDomain(d)})
}

func (h *Handler) updateDiagram(c *gin.Context) {
	var req remote.DiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	d, err := h.store.UpdateDiagram(c.Param("project_id"), domain.DiagramID(c.Param("diagram_id")),
		req.Title, req.Content, domain.DiagramType(req.Type))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "diagram": remote.DiagramFromDomain(d)})
}

func (h *Handler) deleteDiagram(c *gin.Context) {
	if err := h.store.DeleteDiagram(c.Param("project_id"), domain.DiagramID(c.Param("diagram_id"))); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeError(c *gin.Context, err error) {
	var valErr *domain.ValidationError
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": valErr.Message, "fields": valErr.Fields})
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrDiagramNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrProjectExists):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
