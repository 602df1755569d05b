package utils

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags on an input payload.
func ValidateStruct(input interface{}) error {
	return validate.Struct(input)
}

// check if id exists, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records matching $condition
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	dbCtx.Where(condition, value...)
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ValidatePhoneNumber parses against the deployment region (DEFAULT_PHONE_REGION, "IN" default).
// Blank values pass; callers decide whether the field is required.
func ValidatePhoneNumber(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	region := os.Getenv("DEFAULT_PHONE_REGION")
	if region == "" {
		region = "IN"
	}
	num, err := libphonenumber.Parse(value, region)
	if err != nil {
		return errors.New("invalid phone number")
	}
	if !libphonenumber.IsValidNumber(num) {
		return errors.New("invalid phone number")
	}
	return nil
}
