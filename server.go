package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/middlewares"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/dlclinic/clinic_backend/workflow"
)

const defaultPort = "8080"

var tracer = otel.Tracer("clinic-backend")

// spanMiddleware opens a span per request so handler work joins the traces
// the otelgorm plugin emits for the queries underneath it.
func spanMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		spanCtx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+name)
		defer span.End()
		c.Request = c.Request.WithContext(spanCtx)
		c.Next()
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses.
// Validation problems are the caller's fault; stock shortfalls and rows
// that vanished mid-request are conflicts.
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "kind": string(ve.Kind)})
		return
	}
	var se *models.InsufficientStockError
	if errors.As(err, &se) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       se.Error(),
			"medicine_id": se.MedicineId,
			"available":   se.Available,
			"requested":   se.Requested,
		})
		return
	}
	var ie *models.IntegrityError
	if errors.As(err, &ie) {
		c.JSON(http.StatusConflict, gin.H{"error": ie.Message, "kind": string(ie.Kind)})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errors.Is(err, models.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		token, user, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

func createPatientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPatient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		patient, err := models.CreatePatient(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, patient)
	}
}

func updatePatientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewPatient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		patient, err := models.UpdatePatient(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, patient)
	}
}

func getPatientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		patient, err := models.GetPatient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, patient)
	}
}

func patientBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		bills, err := models.ListBillsByPatient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

func patientPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		payments, err := models.ListPaymentsByPatient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

func saveMedicalHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewPatientMedicalHistory
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		history, err := models.SavePatientMedicalHistory(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func getMedicalHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		history, err := models.GetPatientMedicalHistory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func createConsultationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewHairConsultation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		consultation, err := models.CreateHairConsultation(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, consultation)
	}
}

func getConsultationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		consultation, err := models.GetHairConsultation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, consultation)
	}
}

func patientConsultationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		consultations, err := models.ListConsultationsByPatient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, consultations)
	}
}

func createTreatmentPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTreatmentPlan
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		plan, err := models.CreateTreatmentPlan(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func getTreatmentPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		plan, err := models.GetTreatmentPlan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func createTreatmentSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		planId, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewTreatmentSession
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		session, err := models.CreateTreatmentSession(c.Request.Context(), planId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func listTreatmentSessionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		planId, ok := pathId(c)
		if !ok {
			return
		}
		sessions, err := models.ListSessionsByPlan(c.Request.Context(), planId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessions)
	}
}

func createFollowUpHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFollowUp
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		followUp, err := models.CreateFollowUp(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, followUp)
	}
}

func patientFollowUpsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		followUps, err := models.ListFollowUpsByPatient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, followUps)
	}
}

func createLeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLead
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		lead, err := models.CreateLead(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, lead)
	}
}

func updateLeadStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			Status models.LeadStatus `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		lead, err := models.UpdateLeadStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lead)
	}
}

func convertLeadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		patient, err := models.ConvertLead(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, patient)
	}
}

func createServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewService
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		service, err := models.CreateService(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, service)
	}
}

func updateServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewService
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		service, err := models.UpdateService(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, service)
	}
}

func createMedicineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMedicine
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		medicine, err := models.CreateMedicine(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, medicine)
	}
}

func updateMedicineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewMedicine
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		medicine, err := models.UpdateMedicine(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, medicine)
	}
}

func medicineStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		stock, err := models.GetMedicineStock(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stock)
	}
}

func medicineLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		txns, err := models.ListStockTransactions(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txns)
	}
}

func lowStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stocks, err := models.ListLowStock(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stocks)
	}
}

func createStockTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		txn, err := models.CreateStockTransaction(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

func updateStockTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewStockTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		txn, err := models.UpdateStockTransaction(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func deleteStockTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteStockTransaction(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.CreateBillInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		bill, err := workflow.CreateBillWorkflow(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bill)
	}
}

func updateBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input workflow.UpdateBillInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		bill, err := workflow.UpdateBillWorkflow(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func getBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		bill, err := models.GetBill(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func createBillItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		billId, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewBillItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		item, err := models.CreateBillItem(c.Request.Context(), billId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func updateBillItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewBillItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		item, err := models.UpdateBillItem(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteBillItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteBillItem(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payment, err := models.CreatePayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func updatePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payment, err := models.UpdatePayment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func deletePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeletePayment(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewExpense
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		expense, err := models.CreateExpense(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, expense)
	}
}

func updateExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewExpense
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		expense, err := models.UpdateExpense(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func transitionExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			Status models.ExpenseStatus `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		expense, err := models.TransitionExpense(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, expense)
	}
}

func createAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAppointment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		appointment, err := models.CreateAppointment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, appointment)
	}
}

func transitionAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			Status models.AppointmentStatus `json:"status"`
			Remark string                   `json:"remark"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		appointment, err := models.TransitionAppointment(c.Request.Context(), id, req.Status, req.Remark)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, appointment)
	}
}

func rescheduleAppointmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			ScheduledAt time.Time `json:"scheduled_at"`
			Remark      string    `json:"remark"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ScheduledAt.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		appointment, err := models.RescheduleAppointment(c.Request.Context(), id, req.ScheduledAt, req.Remark)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, appointment)
	}
}

// rebuildHandler exposes the reconciliation sweeps to ops. Admin only.
func rebuildBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		balance, err := workflow.RebuildPatientBalance(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"patient_id": id, "balance": balance})
	}
}

func rebuildStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		qty, err := workflow.RebuildStockQuantity(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"medicine_id": id, "current_quantity": qty})
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func registerRoutes(r *gin.Engine) {
	r.POST("/api/login", loginHandler())

	api := r.Group("/api", middlewares.RequireAuth())
	{
		api.POST("/patients", createPatientHandler())
		api.PUT("/patients/:id", updatePatientHandler())
		api.GET("/patients/:id", getPatientHandler())
		api.GET("/patients/:id/bills", patientBillsHandler())
		api.GET("/patients/:id/payments", patientPaymentsHandler())
		api.PUT("/patients/:id/medical-history", saveMedicalHistoryHandler())
		api.GET("/patients/:id/medical-history", getMedicalHistoryHandler())
		api.GET("/patients/:id/consultations", patientConsultationsHandler())
		api.GET("/patients/:id/follow-ups", patientFollowUpsHandler())

		clinical := api.Group("", middlewares.RequireRole("doctor"))
		{
			clinical.POST("/consultations", createConsultationHandler())
			clinical.POST("/treatment-plans", createTreatmentPlanHandler())
			clinical.POST("/treatment-plans/:id/sessions", createTreatmentSessionHandler())
			clinical.POST("/follow-ups", createFollowUpHandler())
		}
		api.GET("/consultations/:id", getConsultationHandler())
		api.GET("/treatment-plans/:id", getTreatmentPlanHandler())
		api.GET("/treatment-plans/:id/sessions", listTreatmentSessionsHandler())

		api.POST("/leads", createLeadHandler())
		api.PUT("/leads/:id/status", updateLeadStatusHandler())
		api.POST("/leads/:id/convert", convertLeadHandler())

		api.POST("/services", createServiceHandler())
		api.PUT("/services/:id", updateServiceHandler())

		api.POST("/medicines", createMedicineHandler())
		api.PUT("/medicines/:id", updateMedicineHandler())
		api.GET("/medicines/:id/stock", medicineStockHandler())
		api.GET("/medicines/:id/transactions", medicineLedgerHandler())
		api.GET("/medicines/low-stock", lowStockHandler())

		pharmacy := api.Group("", middlewares.RequireRole("pharmacist", "doctor"))
		{
			pharmacy.POST("/stock-transactions", createStockTransactionHandler())
			pharmacy.PUT("/stock-transactions/:id", updateStockTransactionHandler())
			pharmacy.DELETE("/stock-transactions/:id", deleteStockTransactionHandler())
		}

		api.POST("/bills", createBillHandler())
		api.PUT("/bills/:id", updateBillHandler())
		api.GET("/bills/:id", getBillHandler())
		api.POST("/bills/:id/items", createBillItemHandler())
		api.PUT("/bill-items/:id", updateBillItemHandler())
		api.DELETE("/bill-items/:id", deleteBillItemHandler())

		api.POST("/payments", createPaymentHandler())
		api.PUT("/payments/:id", updatePaymentHandler())
		api.DELETE("/payments/:id", deletePaymentHandler())

		api.POST("/expenses", createExpenseHandler())
		api.PUT("/expenses/:id", updateExpenseHandler())
		api.POST("/expenses/:id/status", transitionExpenseHandler())

		api.POST("/appointments", createAppointmentHandler())
		api.POST("/appointments/:id/status", transitionAppointmentHandler())
		api.POST("/appointments/:id/reschedule", rescheduleAppointmentHandler())

		ops := api.Group("/internal/ops", middlewares.RequireRole())
		{
			ops.POST("/rebuild-balance/:id", rebuildBalanceHandler())
			ops.POST("/rebuild-stock/:id", rebuildStockHandler())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	// Money math must never go through floats.
	decimal.MarshalJSONWithoutQuotes = false

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before dependencies are ready; app endpoints
	// return 503 until DB and Redis come up.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(spanMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(gin.Recovery())

	registerRoutes(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Running aggregates depend on read-committed visibility of the atomic
	// UPDATE deltas.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<attempt)
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully on port " + port)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
