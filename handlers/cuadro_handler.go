package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"cuadrofirma-backend/auth"
	"cuadrofirma-backend/models"
	"cuadrofirma-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxPDFSize       = 20 * 1024 * 1024 // 20MB
	defaultMaxSignatureSize = 2 * 1024 * 1024  // 2MB
)

// CuadroHandler handles HTTP requests for cuadros de firma
type CuadroHandler struct {
	workflow         *service.WorkflowService
	log              *zap.SugaredLogger
	maxPDFSize       int64
	maxSignatureSize int64
}

// NewCuadroHandler creates a new cuadro handler
func NewCuadroHandler(workflow *service.WorkflowService, log *zap.SugaredLogger) *CuadroHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CuadroHandler{
		workflow:         workflow,
		log:              log,
		maxPDFSize:       defaultMaxPDFSize,
		maxSignatureSize: defaultMaxSignatureSize,
	}
}

// CreateCuadroMetadata is the JSON "metadata" part of the create form
type CreateCuadroMetadata struct {
	Titulo      string   `json:"titulo"`
	Descripcion string   `json:"descripcion"`
	Version     string   `json:"version"`
	Codigo      string   `json:"codigo"`
	EmpresaID   string   `json:"empresa_id"`
	HTML        *string  `json:"html"`
	Elabora     string   `json:"elabora"`
	Revisa      []string `json:"revisa"`
	Aprueba     []string `json:"aprueba"`
}

// ResponsablesRequest is the body of PUT /api/cuadros/:id/responsables
type ResponsablesRequest struct {
	Elabora string   `json:"elabora" binding:"required"`
	Revisa  []string `json:"revisa"`
	Aprueba []string `json:"aprueba"`
}

// EstadoRequest is the body of POST /api/cuadros/:id/estado
type EstadoRequest struct {
	EstadoID    int    `json:"estado_id" binding:"required"`
	Observacion string `json:"observacion"`
}

// RechazoRequest is the body of POST /api/cuadros/:id/rechazar
type RechazoRequest struct {
	Observacion string `json:"observacion" binding:"required"`
}

type assigneeResponse struct {
	UserID           uuid.UUID `json:"user_id"`
	ResponsibilityID int       `json:"responsabilidad_id"`
}

type reconcileResponse struct {
	Added   []assigneeResponse `json:"added"`
	Reset   []assigneeResponse `json:"reset"`
	Removed []assigneeResponse `json:"removed"`
}

func toAssignees(in []models.Assignee) []assigneeResponse {
	out := make([]assigneeResponse, 0, len(in))
	for _, a := range in {
		out = append(out, assigneeResponse{UserID: a.UserID, ResponsibilityID: a.ResponsibilityID})
	}
	return out
}

// CreateCuadro handles POST /api/cuadros
func (h *CuadroHandler) CreateCuadro(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var meta CreateCuadroMetadata
	if err := json.Unmarshal([]byte(c.PostForm("metadata")), &meta); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_METADATA", "metadata must be a JSON object")
		return
	}

	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "pdf is required")
		return
	}
	if fileHeader.Size > h.maxPDFSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxPDFSize))
		return
	}
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" && ct != "application/pdf" &&
		!strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed. Allowed types: PDF")
		return
	}
	pdf, err := readPart(fileHeader)
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_OPEN_ERROR", err.Error())
		return
	}

	req := service.CreateDocumentRequest{
		Title:       meta.Titulo,
		Description: meta.Descripcion,
		Version:     meta.Version,
		Code:        meta.Codigo,
		CreatedBy:   id.SubjectID,
		Filename:    fileHeader.Filename,
		PDF:         pdf,
		HTMLSource:  meta.HTML,
	}
	if meta.EmpresaID != "" {
		companyID, err := uuid.Parse(meta.EmpresaID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_COMPANY_ID", "Invalid empresa_id format")
			return
		}
		req.CompanyID = &companyID
	}
	if req.Elabora, req.Revisa, req.Aprueba, err = parseResponsables(meta.Elabora, meta.Revisa, meta.Aprueba); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_USER_ID", err.Error())
		return
	}

	doc, err := h.workflow.CreateDocument(c.Request.Context(), req)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, doc)
}

// GetCuadro handles GET /api/cuadros/:id
func (h *CuadroHandler) GetCuadro(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}
	detail, err := h.workflow.GetDocumentDetail(c.Request.Context(), docID)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, detail)
}

// SetResponsables handles PUT /api/cuadros/:id/responsables
func (h *CuadroHandler) SetResponsables(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}
	var body ResponsablesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	req := service.SetResponsiblesRequest{DocumentID: docID}
	var err error
	if req.Elabora, req.Revisa, req.Aprueba, err = parseResponsables(body.Elabora, body.Revisa, body.Aprueba); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_USER_ID", err.Error())
		return
	}

	result, err := h.workflow.SetResponsibles(c.Request.Context(), req)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, reconcileResponse{
		Added:   toAssignees(result.Added),
		Reset:   toAssignees(result.Reset),
		Removed: toAssignees(result.Removed),
	})
}

// ValidarOrden handles GET /api/cuadros/:id/validar-orden
func (h *CuadroHandler) ValidarOrden(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}
	resp := c.Query("responsabilidad")
	if strings.TrimSpace(resp) == "" {
		respondError(c, http.StatusBadRequest, "MISSING_RESPONSIBILITY", "responsabilidad is required")
		return
	}
	if err := h.workflow.ValidateSigningOrder(c.Request.Context(), docID, resp); err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"valid": true})
}

// Firmar handles POST /api/cuadros/:id/firmar
func (h *CuadroHandler) Firmar(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	docID, ok := documentID(c)
	if !ok {
		return
	}

	resp := c.PostForm("responsabilidad")
	if strings.TrimSpace(resp) == "" {
		respondError(c, http.StatusBadRequest, "MISSING_RESPONSIBILITY", "responsabilidad is required")
		return
	}
	fileHeader, err := c.FormFile("firma")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "firma is required")
		return
	}
	if fileHeader.Size > h.maxSignatureSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxSignatureSize))
		return
	}
	image, err := readPart(fileHeader)
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_OPEN_ERROR", err.Error())
		return
	}

	result, err := h.workflow.SignDocument(c.Request.Context(), service.SignRequest{
		DocumentID:         docID,
		UserID:             id.SubjectID,
		ResponsibilityName: resp,
		SignatureImage:     image,
	})
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"document":     result.Document,
		"transitioned": result.Transitioned,
	})
}

// CambiarEstado handles POST /api/cuadros/:id/estado
func (h *CuadroHandler) CambiarEstado(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	docID, ok := documentID(c)
	if !ok {
		return
	}
	var body EstadoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.workflow.AdvanceState(c.Request.Context(), service.AdvanceStateRequest{
		DocumentID:  docID,
		StatusID:    body.EstadoID,
		ActorID:     id.SubjectID,
		Observation: body.Observacion,
	})
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"document": result.Document,
		"entry":    result.Entry,
	})
}

// Rechazar handles POST /api/cuadros/:id/rechazar
func (h *CuadroHandler) Rechazar(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	docID, ok := documentID(c)
	if !ok {
		return
	}
	var body RechazoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.workflow.RejectDocument(c.Request.Context(), service.RejectDocumentRequest{
		DocumentID:  docID,
		ActorID:     id.SubjectID,
		Observation: body.Observacion,
	})
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"document": result.Document,
		"entry":    result.Entry,
	})
}

// Historial handles GET /api/cuadros/:id/historial
func (h *CuadroHandler) Historial(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}
	entries, err := h.workflow.ListHistory(c.Request.Context(), docID)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	respondOK(c, http.StatusOK, entries)
}

// URL handles GET /api/cuadros/:id/url
func (h *CuadroHandler) URL(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}
	url, err := h.workflow.GetDocumentURL(c.Request.Context(), docID)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, url)
}

// Asignaciones handles GET /api/asignaciones
func (h *CuadroHandler) Asignaciones(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, ok := pagination(c)
	if !ok {
		return
	}
	page, err := h.workflow.GetAsignacionesByUser(c.Request.Context(), id.SubjectID, p)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

// Supervision handles GET /api/supervision
func (h *CuadroHandler) Supervision(c *gin.Context) {
	p, ok := pagination(c)
	if !ok {
		return
	}

	filter := models.SupervisionFilter{
		StatusName: strings.TrimSpace(c.Query("estado")),
		Query:      strings.TrimSpace(c.Query("q")),
	}
	if s := c.Query("empresa_id"); s != "" {
		companyID, err := uuid.Parse(s)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_COMPANY_ID", "Invalid empresa_id format")
			return
		}
		filter.CompanyID = &companyID
	}
	if s := c.Query("activo"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "activo must be true or false")
			return
		}
		filter.Active = &active
	}

	page, err := h.workflow.ListSupervision(c.Request.Context(), filter, p)
	if err != nil {
		serviceError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.FromGin(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity")
		return auth.Identity{}, false
	}
	return id, true
}

func documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid cuadro id format")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (models.Pagination, bool) {
	var p models.Pagination
	for key, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		s := c.Query(key)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_PAGINATION", key+" must be an integer")
			return p, false
		}
		*dst = v
	}
	return p.Normalize(), true
}

func parseResponsables(elabora string, revisa, aprueba []string) (uuid.UUID, []uuid.UUID, []uuid.UUID, error) {
	var e uuid.UUID
	if elabora != "" {
		var err error
		if e, err = uuid.Parse(elabora); err != nil {
			return uuid.Nil, nil, nil, fmt.Errorf("invalid elabora user id %q", elabora)
		}
	}
	r, err := parseIDs("revisa", revisa)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	a, err := parseIDs("aprueba", aprueba)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	return e, r, a, nil
}

func parseIDs(field string, in []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s user id %q", field, s)
		}
		out = append(out, id)
	}
	return out, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
