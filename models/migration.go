package models

import (
	"github.com/dlclinic/clinic_backend/config"
)

// MigrateTable keeps the schema in sync with the model structs.
func MigrateTable() {
	db := config.GetDB()
	logger := config.GetLogger()

	err := db.AutoMigrate(
		&User{},
		&Patient{},
		&Lead{},
		&Service{},
		&MedicineCategory{},
		&Medicine{},
		&MedicineStock{},
		&StockTransaction{},
		&Bill{},
		&BillItem{},
		&Payment{},
		&Expense{},
		&Appointment{},
		&AppointmentLog{},
		&PatientMedicalHistory{},
		&HairConsultation{},
		&TreatmentPlan{},
		&TreatmentSession{},
		&FollowUp{},
	)
	if err != nil {
		logger.Errorf("Error migrating database tables: %v", err)
		return
	}
	logger.Info("Database tables migrated")
}
