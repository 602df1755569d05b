package models

import (
	"context"
	"fmt"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
	"github.com/shopspring/decimal"
)

type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
	ExpenseStatusPaid     ExpenseStatus = "paid"
)

type ExpenseCategory string

const (
	ExpenseCategorySupplies    ExpenseCategory = "supplies"
	ExpenseCategoryEquipment   ExpenseCategory = "equipment"
	ExpenseCategoryRent        ExpenseCategory = "rent"
	ExpenseCategoryUtilities   ExpenseCategory = "utilities"
	ExpenseCategorySalary      ExpenseCategory = "salary"
	ExpenseCategoryMaintenance ExpenseCategory = "maintenance"
	ExpenseCategoryOther       ExpenseCategory = "other"
)

// expenseTransitions lists the legal status moves. Rejected and paid are
// terminal.
var expenseTransitions = map[ExpenseStatus][]ExpenseStatus{
	ExpenseStatusPending:  {ExpenseStatusApproved, ExpenseStatusRejected},
	ExpenseStatusApproved: {ExpenseStatusPaid},
}

// CanTransitionExpense reports whether an expense may move from one status
// to another.
func CanTransitionExpense(from, to ExpenseStatus) bool {
	for _, allowed := range expenseTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Expense struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ExpenseNumber string          `gorm:"size:20;uniqueIndex;not null" json:"expense_number"`
	Category      ExpenseCategory `gorm:"type:enum('supplies','equipment','rent','utilities','salary','maintenance','other');not null" json:"category"`
	Description   string          `gorm:"size:255;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status        ExpenseStatus   `gorm:"type:enum('pending','approved','rejected','paid');default:pending" json:"status"`
	ExpenseDate   time.Time       `json:"expense_date"`
	Vendor        string          `gorm:"size:200" json:"vendor"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CreatedById   int             `gorm:"default:null" json:"created_by_id"`
	ApprovedById  int             `gorm:"default:null" json:"approved_by_id"`
}

type NewExpense struct {
	Category    ExpenseCategory `json:"category" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate time.Time       `json:"expense_date"`
	Vendor      string          `json:"vendor"`
	Notes       string          `json:"notes"`
}

// FormatExpenseNumber renders the yearly expense number, e.g. EXP202600001.
func FormatExpenseNumber(year int, seq int64) string {
	return fmt.Sprintf("EXP%d%05d", year, seq)
}

func (input *NewExpense) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return newValidationError(ValidationNonPositiveQuantity, "expense amount must be > 0")
	}
	return nil
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	createdBy, _ := utils.GetUserIdFromContext(ctx)

	expenseDate := input.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = time.Now()
	}

	expense := Expense{
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		Status:      ExpenseStatusPending,
		ExpenseDate: expenseDate,
		Vendor:      input.Vendor,
		Notes:       input.Notes,
		CreatedById: createdBy,
	}

	db := config.GetDB()
	tx := db.Begin()

	year := expenseDate.Year()
	seqNo, err := utils.NextYearlySequence[Expense](ctx, "expense_date", year)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	expense.ExpenseNumber = FormatExpenseNumber(year, seqNo)

	if err := tx.WithContext(ctx).Create(&expense).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &expense, nil
}

func UpdateExpense(ctx context.Context, id int, input *NewExpense) (*Expense, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	expense, err := utils.FetchSingleModel[Expense](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("expense", id, err)
	}
	if expense.Status != ExpenseStatusPending {
		return nil, newValidationError(ValidationMismatchedKind, "only pending expenses can be edited")
	}

	expense.Category = input.Category
	expense.Description = input.Description
	expense.Amount = input.Amount
	if !input.ExpenseDate.IsZero() {
		expense.ExpenseDate = input.ExpenseDate
	}
	expense.Vendor = input.Vendor
	expense.Notes = input.Notes

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

// TransitionExpense moves the expense through its approval machine.
// Approval records who approved.
func TransitionExpense(ctx context.Context, id int, to ExpenseStatus) (*Expense, error) {
	expense, err := utils.FetchSingleModel[Expense](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("expense", id, err)
	}
	if !CanTransitionExpense(expense.Status, to) {
		return nil, newValidationError(ValidationMismatchedKind,
			fmt.Sprintf("cannot move expense from %s to %s", expense.Status, to))
	}

	expense.Status = to
	if to == ExpenseStatusApproved {
		approvedBy, _ := utils.GetUserIdFromContext(ctx)
		expense.ApprovedById = approvedBy
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	expense, err := utils.FetchSingleModel[Expense](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("expense", id, err)
	}
	return expense, nil
}
