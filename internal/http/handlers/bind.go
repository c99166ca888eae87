package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

func BindJSON(ctx *gin.Context, out any) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out, "json"))
		return false
	}

	return true
}

// BindForm binds urlencoded or multipart forms using `form` tags.
func BindForm(ctx *gin.Context, out any) bool {
	b := binding.Form

	if strings.HasPrefix(ctx.ContentType(), binding.MIMEMultipartPOSTForm) {
		b = binding.FormMultipart
	}

	if err := ctx.ShouldBindWith(out, b); err != nil {
		RespondBadRequest(ctx, "Invalid form data", parseBindError(err, out, "form"))
		return false
	}

	return true
}

func parseBindError(err error, out any, tagKey string) any {
	rootType := baseStructType(out)

	var validationErrs validator.ValidationErrors

	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))

		for _, fe := range validationErrs {
			fields = append(fields, FieldError{
				Field:   fieldPath(rootType, fe, tagKey),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			})
		}

		return gin.H{"fields": fields}
	}

	var syntaxErr *json.SyntaxError

	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := mapStructPath(rootType, strings.Split(strings.TrimSpace(typeErr.Field), "."), tagKey)

		if field == "" {
			field = strings.TrimSpace(typeErr.Field)
		}

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		}
	}

	var numErr *strconv.NumError

	if errors.As(err, &numErr) {
		return gin.H{
			"form": "invalid_form_type",
			"fields": []FieldError{{
				Rule:    "type",
				Message: fmt.Sprintf("%q is not a number", numErr.Num),
			}},
		}
	}

	return gin.H{"reason": err.Error()}
}

func baseStructType(v any) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// fieldPath turns "CreateReviewRequest.ArtisanID" into the wire name, e.g. "artisanId".
func fieldPath(rootType reflect.Type, fe validator.FieldError, tagKey string) string {
	namespace := fe.StructNamespace()

	if namespace == "" {
		return fe.Field()
	}

	parts := strings.Split(namespace, ".")

	if rootType != nil && len(parts) > 0 && parts[0] == rootType.Name() {
		parts = parts[1:]
	}

	if path := mapStructPath(rootType, parts, tagKey); path != "" {
		return path
	}

	return fe.Field()
}

func mapStructPath(rootType reflect.Type, parts []string, tagKey string) string {
	current := rootType
	out := make([]string, 0, len(parts))

	for _, raw := range parts {
		if raw == "" {
			continue
		}

		name, index, _ := strings.Cut(raw, "[")

		if index != "" {
			index = "[" + index
		}

		wire := name
		var next reflect.Type

		for current != nil && current.Kind() == reflect.Pointer {
			current = current.Elem()
		}

		if current != nil && current.Kind() == reflect.Struct {
			if sf, ok := current.FieldByName(name); ok {
				wire = tagName(sf, tagKey)
				next = elemType(sf.Type)
			}
		}

		out = append(out, wire+index)
		current = next
	}

	return strings.Join(out, ".")
}

func tagName(sf reflect.StructField, tagKey string) string {
	name, _, _ := strings.Cut(sf.Tag.Get(tagKey), ",")

	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func elemType(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}

	return nil
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "datetime":
		return "must match the format " + param
	case "eqfield":
		return "must match " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}

		return "failed " + rule + " validation"
	}
}
