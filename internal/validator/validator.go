package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/schema"
)

// Validator is the main validator instance used for requests and imported records
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates a request struct and converts failures into ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	// Table type validation
	validate.RegisterValidation("table_type", validateTableType)

	// Master location type validation
	validate.RegisterValidation("location_type", validateLocationType)

	// Resolution choices sent by the wizard
	validate.RegisterValidation("duplicate_resolution", validateDuplicateResolution)
	validate.RegisterValidation("location_resolution", validateLocationResolution)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validateTableType(fl validator.FieldLevel) bool {
	_, err := schema.ParseTableType(fl.Field().String())
	return err == nil
}

func validateLocationType(fl validator.FieldLevel) bool {
	validTypes := []models.LocationType{
		models.LocationDepot,
		models.LocationCustomer,
		models.LocationWarehouse,
		models.LocationHub,
		models.LocationOther,
	}

	value := strings.ToLower(fl.Field().String())
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateDuplicateResolution(fl validator.FieldLevel) bool {
	switch duplicates.Resolution(fl.Field().String()) {
	case duplicates.Replace, duplicates.Create, duplicates.Skip:
		return true
	}
	return false
}

func validateLocationResolution(fl validator.FieldLevel) bool {
	switch locations.Action(fl.Field().String()) {
	case locations.UseExisting, locations.CreateNew, locations.Skip:
		return true
	}
	return false
}
