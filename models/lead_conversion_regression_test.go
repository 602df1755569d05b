package models_test

import (
	"context"
	"strings"
	"testing"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/models"
	"github.com/dlclinic/clinic_backend/utils"
)

// Regression: converting a lead is idempotent. The second conversion must
// return the patient created by the first one, and no duplicate patient
// may appear.
func TestConvertLead_Idempotent(t *testing.T) {
	skipUnlessIntegration(t)
	setupIntegrationEnv(t)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)

	lead, err := models.CreateLead(ctx, &models.NewLead{
		Name:        "Chitra Devi",
		PhoneNumber: "+919800112233",
		Age:         42,
		City:        "Pune",
		Source:      models.LeadSourceReferral,
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	first, err := models.ConvertLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}
	if !strings.HasPrefix(first.FileNumber, "DLP") {
		t.Fatalf("unexpected file number %q", first.FileNumber)
	}
	if first.Name != lead.Name || first.PhoneNumber != lead.PhoneNumber {
		t.Fatalf("patient does not carry lead details: %+v", first)
	}
	if first.Age != 42 {
		t.Fatalf("expected age 42; got %d", first.Age)
	}
	if first.DateOfBirth.IsZero() {
		t.Fatalf("expected back-computed date of birth")
	}

	second, err := models.ConvertLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("ConvertLead(second): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second conversion produced a different patient: %d != %d", second.ID, first.ID)
	}

	var count int64
	db := config.GetDB()
	if err := db.Model(&models.Patient{}).Where("phone_number = ?", lead.PhoneNumber).Count(&count).Error; err != nil {
		t.Fatalf("count patients: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 patient; got %d", count)
	}

	converted, err := utils.FetchSingleModel[models.Lead](ctx, lead.ID)
	if err != nil {
		t.Fatalf("fetch lead: %v", err)
	}
	if converted.Status != models.LeadStatusConverted {
		t.Fatalf("expected converted status; got %s", converted.Status)
	}
	if converted.ConversionDate == nil {
		t.Fatalf("expected conversion date to be set")
	}

	// A converted lead is frozen.
	if _, err := models.UpdateLeadStatus(ctx, lead.ID, models.LeadStatusLost); err == nil {
		t.Fatalf("expected status update on converted lead to fail")
	}
}
