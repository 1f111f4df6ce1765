package catalog

import (
	"errors"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// FormMode selects which file fields are mandatory.
type FormMode int

const (
	FormCreate FormMode = iota
	FormUpdate
)

const (
	msgRequired     = "Required"
	msgNotInteger   = "Expected an integer"
	msgPriceMin     = "Must be at least 1"
	msgEmptyFile    = "File must not be empty"
	msgInvalidImage = "Invalid image file"
)

// ProductForm is a submission that passed validation.
type ProductForm struct {
	Input ProductInput
	File  *Payload
	Image *Payload
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report form field names so errors line up with the submitted form
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateProductForm turns a multipart submission into a typed ProductForm,
// or returns a *ValidationError naming every offending field.
func ValidateProductForm(fields map[string][]string, files map[string][]*multipart.FileHeader, mode FormMode) (ProductForm, error) {
	verr := &ValidationError{}
	form := ProductForm{
		Input: ProductInput{
			Name:        firstValue(fields, "name"),
			Description: firstValue(fields, "description"),
		},
	}

	rawPrice := strings.TrimSpace(firstValue(fields, "priceInCents"))
	if rawPrice == "" {
		verr.Add("priceInCents", msgRequired)
	} else if price, ok := parseCents(rawPrice); ok {
		form.Input.PriceInCents = price
	} else {
		verr.Add("priceInCents", msgNotInteger)
	}

	var err error
	if form.File, err = readPart(files["file"]); err != nil {
		verr.Add("file", err.Error())
	}
	if form.Image, err = readPart(files["image"]); err != nil {
		verr.Add("image", err.Error())
	}

	checkInput(&form.Input, verr)
	checkPayloads(form.File, form.Image, mode, verr)
	if err := verr.OrNil(); err != nil {
		return ProductForm{}, err
	}
	if mode == FormUpdate {
		// an empty part is what a browser sends when no file was chosen
		if form.File.IsEmpty() {
			form.File = nil
		}
		if form.Image.IsEmpty() {
			form.Image = nil
		}
	}
	return form, nil
}

// parseCents accepts any numeric spelling of a whole number, e.g. "500",
// "0500" or "5e2", and rejects fractions. Plain digits are parsed exactly;
// only other spellings go through float64.
func parseCents(raw string) (int64, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return n, true
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// checkInput trims the metadata and runs the struct constraints. Fields
// that already carry an error are not reported twice.
func checkInput(in *ProductInput, verr *ValidationError) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	err := validate.Struct(in)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add("form", err.Error())
		return
	}
	for _, fe := range verrs {
		if verr.Has(fe.Field()) {
			continue
		}
		verr.Add(fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "min":
		if fe.Field() == "priceInCents" {
			return msgPriceMin
		}
		return "Must be at least " + fe.Param() + " characters"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	}
	return "Invalid value"
}

func checkPayloads(file, image *Payload, mode FormMode, verr *ValidationError) {
	if mode == FormCreate {
		switch {
		case verr.Has("file"):
		case file == nil:
			verr.Add("file", msgRequired)
		case len(file.Data) == 0:
			verr.Add("file", msgEmptyFile)
		}
		switch {
		case verr.Has("image"):
		case image == nil:
			verr.Add("image", msgRequired)
		case len(image.Data) == 0:
			verr.Add("image", msgInvalidImage)
		}
	}
	if !image.IsEmpty() && !verr.Has("image") && !isImage(image) {
		verr.Add("image", msgInvalidImage)
	}
}

// isImage trusts a declared media type and sniffs the content otherwise.
// The detected type is recorded on the payload.
func isImage(p *Payload) bool {
	ct := ""
	if p.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(p.ContentType); err == nil {
			ct = strings.ToLower(mt)
		}
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = mimetype.Detect(p.Data).String()
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mt
		}
		p.ContentType = ct
	}
	return strings.HasPrefix(ct, "image/")
}

func firstValue(fields map[string][]string, key string) string {
	if vs := fields[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

type partError string

func (e partError) Error() string { return string(e) }

// readPart loads the first uploaded file of a field into memory.
func readPart(headers []*multipart.FileHeader) (*Payload, error) {
	if len(headers) == 0 || headers[0] == nil {
		return nil, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, partError("Unable to read upload: " + err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, partError("Unable to read upload: " + err.Error())
	}
	return &Payload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
