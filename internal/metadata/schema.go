package metadata

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/uri"
)

const dateLayout = "2006-01-02"

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("content_ref", validateContentRef)
	validate.RegisterStructValidation(validateBatchProperties, BatchProperties{})
}

// Attribute is a trait/value pair
type Attribute struct {
	TraitType string      `json:"trait_type" validate:"required,max=100"`
	Value     interface{} `json:"value"`
}

// BatchProperties describes the physical lot
type BatchProperties struct {
	Origin         string   `json:"origin,omitempty" validate:"max=200"`
	QualityGrade   string   `json:"quality_grade,omitempty" validate:"max=50"`
	HarvestDate    string   `json:"harvest_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate     string   `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Weight         string   `json:"weight,omitempty" validate:"max=50"`
	Location       string   `json:"location,omitempty" validate:"max=200"`
	Certifications []string `json:"certifications,omitempty" validate:"omitempty,dive,required,max=100"`
}

// BatchMetadata is the off-chain document a batch's metadata reference points to
type BatchMetadata struct {
	Name            string           `json:"name" validate:"required,max=200"`
	Description     string           `json:"description" validate:"required,max=5000"`
	Image           string           `json:"image,omitempty" validate:"omitempty,content_ref"`
	Attributes      []Attribute      `json:"attributes,omitempty" validate:"omitempty,dive"`
	BatchProperties *BatchProperties `json:"batch_properties,omitempty"`
	ExternalURL     string           `json:"external_url,omitempty" validate:"omitempty,url"`
	CreatedAt       time.Time        `json:"created_at" validate:"required"`
	Version         string           `json:"version" validate:"required"`
}

// FieldError describes a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a document
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the document against the schema
func (m *BatchMetadata) Validate() error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return domain.NewLedgerError(domain.ErrInvalidArgument, "validateMetadata", err)
	}

	verr := &ValidationError{}
	for _, fe := range validationErrs {
		field := strings.TrimPrefix(fe.Namespace(), "BatchMetadata.")
		verr.Fields = append(verr.Fields, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Message: validationMessage(field, fe),
		})
	}
	return domain.NewLedgerError(domain.ErrInvalidArgument, "validateMetadata", verr)
}

func validationMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return field + " must be a date formatted as YYYY-MM-DD"
	case "url":
		return field + " must be a URL"
	case "content_ref":
		return field + " must be a URL or an IPFS content address"
	case "expiry_after_harvest":
		return field + " must not be before harvest_date"
	default:
		return field + " is invalid"
	}
}

// validateContentRef accepts http(s) URLs, ipfs:// URIs and bare CIDs
func validateContentRef(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if _, ok := uri.ExtractCID(value); ok {
		return true
	}
	u, err := url.Parse(value)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateBatchProperties(sl validator.StructLevel) {
	props := sl.Current().Interface().(BatchProperties)
	if props.HarvestDate == "" || props.ExpiryDate == "" {
		return
	}
	harvest, err1 := time.Parse(dateLayout, props.HarvestDate)
	expiry, err2 := time.Parse(dateLayout, props.ExpiryDate)
	if err1 != nil || err2 != nil {
		return
	}
	if expiry.Before(harvest) {
		sl.ReportError(props.ExpiryDate, "expiry_date", "ExpiryDate", "expiry_after_harvest", "")
	}
}
