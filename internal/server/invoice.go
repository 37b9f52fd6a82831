package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GenerateInvoices(c *gin.Context) {
	buildingID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_building_id", "invalid building id"))
		return
	}
	// A missing period is resolved by the aggregator against its own clock.
	period, err := parseOptionalPeriod(c.Query("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invoiceSvc.GenerateInvoices(c.Request.Context(), buildingID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListInvoices(c *gin.Context) {
	buildingID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_building_id", "invalid building id"))
		return
	}
	period, err := s.periodOrPrevious(c.Query("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoices, err := s.invoiceSvc.ListInvoices(c.Request.Context(), buildingID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) NotifyInvoices(c *gin.Context) {
	buildingID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_building_id", "invalid building id"))
		return
	}
	period, err := s.periodOrPrevious(c.Query("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.notifier.SendInvoiceEmails(c.Request.Context(), buildingID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) InvoicePDF(c *gin.Context) {
	invoiceID, err := parseSnowflakeID(c.Param("invoice_id"))
	if err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice id"))
		return
	}

	doc, err := s.invoiceSvc.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := s.pdf.GenerateInvoice(c.Request.Context(), *doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+doc.Number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
