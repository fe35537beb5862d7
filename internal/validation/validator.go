// Package validation checks the create-product and update-metadata forms before anything is sent.
// Rules run in a fixed order and the first failing rule decides the message.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/abgdnv/producthub/internal/catalog"
	catalogerrors "github.com/abgdnv/producthub/internal/errors"
	"github.com/go-playground/validator/v10"
)

const (
	MsgTitleRequired       = "Title is required"
	MsgDescriptionRequired = "Description is required"
	MsgRatingInvalid       = "Rating must be a number between 0 and 5"
	MsgPriceInvalid        = "Price must be a positive number"
	MsgMrpInvalid          = "MRP must be a positive number"
	MsgStockInvalid        = "Stock must be a non-negative integer"
	MsgSalesInvalid        = "Sales must be a non-negative integer"
	MsgProductIDRequired   = "Product ID is required"
	MsgRamInvalid          = "RAM format invalid. Example: 8GB, 16GB"
	MsgStorageInvalid      = "Storage format invalid. Example: 128GB, 256GB, 1TB"
	MsgColorInvalid        = "Color must be text only. Example: red, blue, black"
	MsgScreenInvalid       = "Screen format invalid. Example: 6.1 inch, 6.7 inch"
)

var (
	ramPattern     = regexp.MustCompile(`(?i)^\d+GB$`)
	storagePattern = regexp.MustCompile(`(?i)^\d+(GB|TB)$`)
	colorPattern   = regexp.MustCompile(`^[A-Za-z\s]+$`)
	screenPattern  = regexp.MustCompile(`(?i)^\d+(\.\d+)?\s*(inch|inches)$`)
)

// Validator holds a configured go-playground validator. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the metadata format tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegisterPattern(v, "ram", ramPattern)
	mustRegisterPattern(v, "storage", storagePattern)
	mustRegisterPattern(v, "color", colorPattern)
	mustRegisterPattern(v, "screen", screenPattern)
	return &Validator{validate: v}
}

func mustRegisterPattern(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
	}
}

// ValidateNewProduct checks a create-product draft and returns the payload with numbers coerced.
// On failure the error is a *errors.ValidationError naming the first offending field.
func (v *Validator) ValidateNewProduct(draft catalog.ProductDraft) (catalog.ProductCreateDto, error) {
	title := strings.TrimSpace(draft.Title)
	if v.validate.Var(title, "required") != nil {
		return catalog.ProductCreateDto{}, invalid("title", MsgTitleRequired)
	}
	description := strings.TrimSpace(draft.Description)
	if v.validate.Var(description, "required") != nil {
		return catalog.ProductCreateDto{}, invalid("description", MsgDescriptionRequired)
	}
	rating, ok := v.parseReal(draft.Rating, "gte=0,lte=5")
	if !ok {
		return catalog.ProductCreateDto{}, invalid("rating", MsgRatingInvalid)
	}
	price, ok := v.parseReal(draft.Price, "gt=0")
	if !ok {
		return catalog.ProductCreateDto{}, invalid("price", MsgPriceInvalid)
	}
	mrp, ok := v.parseReal(draft.Mrp, "gt=0")
	if !ok {
		return catalog.ProductCreateDto{}, invalid("mrp", MsgMrpInvalid)
	}
	stock, ok := v.parseCount(draft.Stock)
	if !ok {
		return catalog.ProductCreateDto{}, invalid("stock", MsgStockInvalid)
	}
	sales, ok := v.parseCount(draft.Sales)
	if !ok {
		return catalog.ProductCreateDto{}, invalid("sales", MsgSalesInvalid)
	}

	return catalog.ProductCreateDto{
		Title:       title,
		Description: description,
		Rating:      rating,
		Price:       price,
		Mrp:         mrp,
		Stock:       stock,
		Sales:       sales,
	}, nil
}

// ValidateMetadata checks a metadata draft. Empty attributes are allowed and left out of the payload.
func (v *Validator) ValidateMetadata(draft catalog.MetadataDraft) (catalog.MetadataUpdateDto, error) {
	productID := strings.TrimSpace(draft.ProductID)
	if v.validate.Var(productID, "required") != nil {
		return catalog.MetadataUpdateDto{}, invalid("productId", MsgProductIDRequired)
	}

	checks := []struct {
		field   string
		value   string
		tag     string
		message string
	}{
		{field: "ram", value: draft.Ram, tag: "ram", message: MsgRamInvalid},
		{field: "storage", value: draft.Storage, tag: "storage", message: MsgStorageInvalid},
		{field: "color", value: draft.Color, tag: "color", message: MsgColorInvalid},
		{field: "screen", value: draft.Screen, tag: "screen", message: MsgScreenInvalid},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		if v.validate.Var(strings.TrimSpace(c.value), c.tag) != nil {
			return catalog.MetadataUpdateDto{}, invalid(c.field, c.message)
		}
	}

	return catalog.MetadataUpdateDto{
		ProductID: productID,
		Metadata: catalog.Metadata{
			Ram:     strings.TrimSpace(draft.Ram),
			Storage: strings.TrimSpace(draft.Storage),
			Color:   strings.TrimSpace(draft.Color),
			Screen:  strings.TrimSpace(draft.Screen),
		},
	}, nil
}

// parseReal parses a finite real number and checks it against the validator tag.
func (v *Validator) parseReal(raw, tag string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if v.validate.Var(value, tag) != nil {
		return 0, false
	}
	return value, true
}

// parseCount parses a base-10 integer that must not be negative.
func (v *Validator) parseCount(raw string) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	if v.validate.Var(value, "gte=0") != nil {
		return 0, false
	}
	return value, true
}

func invalid(field, message string) error {
	return &catalogerrors.ValidationError{Field: field, Message: message}
}
