package handler

import (
	"mime"
	"net/http"
	"strings"

	"fatoora/internal/engine"
	"fatoora/internal/export"
	"fatoora/internal/middleware"
	"fatoora/internal/model"
	"fatoora/internal/service"
	"fatoora/pkg/response"

	"github.com/gin-gonic/gin"
)

// WarningsHeader lists the warning codes of a binary export response.
const WarningsHeader = "X-Invoice-Warnings"

type InvoiceHandler struct {
	exportService service.ExportService
	secret        []byte
}

func NewInvoiceHandler(exportService service.ExportService, secret []byte) *InvoiceHandler {
	return &InvoiceHandler{exportService: exportService, secret: secret}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoice := router.Group("/api/invoice")
	invoice.Use(middleware.OptionalAuth(h.secret))
	{
		invoice.POST("/generate", h.Generate)
		invoice.POST("/export", h.Export)
		invoice.POST("/derive", h.Derive)
		invoice.POST("/whatsapp", h.WhatsApp)
	}
}

type DeriveResponse struct {
	Invoice  engine.DerivedInvoice `json:"invoice"`
	Warnings []engine.Warning      `json:"warnings"`
}

// Generate renders the invoice as a PDF document
// @Summary      Generate PDF
// @Description  Derives totals and renders the invoice with its pdfTemplate
// @Tags         invoice
// @Accept       json
// @Produce      application/pdf
// @Param        payload  body      model.Invoice  true  "Invoice"
// @Success      200      {file}    binary
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoice/generate [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var inv model.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		badPayload(c, err)
		return
	}
	h.export(c, inv, export.KindPDF)
}

// Export renders the invoice in the requested format
// @Summary      Export invoice
// @Description  Renders pdf, csv, json or whatsapp; type defaults to the body's exportType
// @Tags         invoice
// @Accept       json
// @Produce      octet-stream
// @Param        type     query     string         false  "pdf, csv, json or whatsapp"
// @Param        payload  body      model.Invoice  true   "Invoice"
// @Success      200      {file}    binary
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoice/export [post]
func (h *InvoiceHandler) Export(c *gin.Context) {
	var inv model.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		badPayload(c, err)
		return
	}

	selector := c.Query("type")
	if selector == "" {
		selector = inv.ExportType
	}
	kind, err := export.ParseKind(selector)
	if err != nil {
		writeError(c, err)
		return
	}
	h.export(c, inv, kind)
}

func (h *InvoiceHandler) export(c *gin.Context, inv model.Invoice, kind export.Kind) {
	res, err := h.exportService.Export(c.Request.Context(), service.ExportRequest{
		Invoice: inv,
		Kind:    kind,
		UserID:  middleware.UserID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if len(res.Warnings) > 0 {
		codes := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			codes = append(codes, string(w.Code))
		}
		c.Header(WarningsHeader, strings.Join(codes, ","))
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Artifact.FileName}))
	c.Data(http.StatusOK, res.Artifact.ContentType, res.Artifact.Body)
}

// Derive returns the invoice with all computed fields resolved
// @Summary      Derive totals
// @Description  Live preview of subtotal, adjustments, total and total in words
// @Tags         invoice
// @Accept       json
// @Produce      json
// @Param        payload  body      model.Invoice  true  "Invoice"
// @Success      200      {object}  response.Response{data=DeriveResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoice/derive [post]
func (h *InvoiceHandler) Derive(c *gin.Context) {
	var inv model.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		badPayload(c, err)
		return
	}

	derived, err := h.exportService.Derive(c.Request.Context(), inv)
	if err != nil {
		writeError(c, err)
		return
	}

	warnings := derived.Warnings
	if warnings == nil {
		warnings = []engine.Warning{}
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, DeriveResponse{Invoice: derived, Warnings: warnings}))
}

// WhatsApp builds a wa.me link carrying the invoice preview
// @Summary      WhatsApp link
// @Description  Validates the phone number and returns a click-to-chat link with the invoice text
// @Tags         invoice
// @Accept       json
// @Produce      json
// @Param        payload  body      service.WhatsAppLinkRequest  true  "Phone and invoice"
// @Success      200      {object}  response.Response{data=service.WhatsAppLinkResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoice/whatsapp [post]
func (h *InvoiceHandler) WhatsApp(c *gin.Context) {
	var req service.WhatsAppLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	link, err := h.exportService.WhatsAppLink(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, link))
}
