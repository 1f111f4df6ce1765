package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() map[string]string {
	return map[string]string{
		"name":         "  Go Patterns ",
		"description":  "An ebook",
		"priceInCents": "1999",
	}
}

func validFiles() map[string]filePart {
	return map[string]filePart{
		"file":  {name: "book.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")},
		"image": {name: "cover.png", contentType: "image/png", data: pngBytes},
	}
}

func TestValidateProductFormCreate(t *testing.T) {
	form := buildForm(t, validFields(), validFiles())

	got, err := ValidateProductForm(form.Value, form.File, FormCreate)
	require.NoError(t, err)
	assert.Equal(t, "Go Patterns", got.Input.Name)
	assert.Equal(t, int64(1999), got.Input.PriceInCents)
	require.NotNil(t, got.File)
	assert.Equal(t, "book.pdf", got.File.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), got.File.Data)
	require.NotNil(t, got.Image)
	assert.Equal(t, "image/png", got.Image.ContentType)
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	return verr.Fields
}

func TestValidateProductFormReportsEveryField(t *testing.T) {
	form := buildForm(t, map[string]string{"name": "   ", "priceInCents": "0"}, nil)

	_, err := ValidateProductForm(form.Value, form.File, FormCreate)
	fields := fieldErrors(t, err)
	assert.Equal(t, []string{msgRequired}, fields["name"])
	assert.Equal(t, []string{msgRequired}, fields["description"])
	assert.Equal(t, []string{msgPriceMin}, fields["priceInCents"])
	assert.Equal(t, []string{msgRequired}, fields["file"])
	assert.Equal(t, []string{msgRequired}, fields["image"])
}

func TestValidateProductFormPrice(t *testing.T) {
	cases := []struct {
		raw   string
		want  int64
		field string
	}{
		{raw: "500", want: 500},
		{raw: "0500", want: 500},
		{raw: "1e3", want: 1000},
		{raw: "9223372036854775807", want: 9223372036854775807},
		{raw: "9007199254740993", want: 9007199254740993},
		{raw: "9223372036854775808", field: msgNotInteger},
		{raw: "1e19", field: msgNotInteger},
		{raw: "5.5", field: msgNotInteger},
		{raw: "abc", field: msgNotInteger},
		{raw: "NaN", field: msgNotInteger},
		{raw: "-3", field: msgPriceMin},
		{raw: "", field: msgRequired},
	}
	for _, tc := range cases {
		fields := validFields()
		fields["priceInCents"] = tc.raw
		form := buildForm(t, fields, validFiles())

		got, err := ValidateProductForm(form.Value, form.File, FormCreate)
		if tc.field == "" {
			require.NoError(t, err, "price %q", tc.raw)
			assert.Equal(t, tc.want, got.Input.PriceInCents, "price %q", tc.raw)
			continue
		}
		assert.Equal(t, []string{tc.field}, fieldErrors(t, err)["priceInCents"], "price %q", tc.raw)
	}
}

func TestValidateProductFormImageChecks(t *testing.T) {
	files := validFiles()
	files["image"] = filePart{name: "notes.txt", contentType: "text/plain", data: []byte("hello")}
	form := buildForm(t, validFields(), files)
	_, err := ValidateProductForm(form.Value, form.File, FormCreate)
	assert.Equal(t, []string{msgInvalidImage}, fieldErrors(t, err)["image"])

	// undeclared type is sniffed
	files["image"] = filePart{name: "cover", data: pngBytes}
	form = buildForm(t, validFields(), files)
	got, err := ValidateProductForm(form.Value, form.File, FormCreate)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.Image.ContentType)

	files["image"] = filePart{name: "cover.png", contentType: "image/png"}
	form = buildForm(t, validFields(), files)
	_, err = ValidateProductForm(form.Value, form.File, FormCreate)
	assert.Equal(t, []string{msgInvalidImage}, fieldErrors(t, err)["image"])
}

func TestValidateProductFormEmptyDeliverableOnCreate(t *testing.T) {
	files := validFiles()
	files["file"] = filePart{name: "empty.pdf", contentType: "application/pdf"}
	form := buildForm(t, validFields(), files)

	_, err := ValidateProductForm(form.Value, form.File, FormCreate)
	assert.Equal(t, []string{msgEmptyFile}, fieldErrors(t, err)["file"])
}

func TestValidateProductFormUpdateFilesOptional(t *testing.T) {
	form := buildForm(t, validFields(), nil)
	got, err := ValidateProductForm(form.Value, form.File, FormUpdate)
	require.NoError(t, err)
	assert.Nil(t, got.File)
	assert.Nil(t, got.Image)

	// browsers send empty parts when no file was picked
	form = buildForm(t, validFields(), map[string]filePart{
		"file":  {name: "", contentType: "application/octet-stream"},
		"image": {name: "", contentType: "application/octet-stream"},
	})
	got, err = ValidateProductForm(form.Value, form.File, FormUpdate)
	require.NoError(t, err)
	assert.Nil(t, got.File)
	assert.Nil(t, got.Image)

	form = buildForm(t, validFields(), map[string]filePart{
		"image": {name: "doc.pdf", contentType: "application/pdf", data: []byte("%PDF")},
	})
	_, err = ValidateProductForm(form.Value, form.File, FormUpdate)
	assert.Equal(t, []string{msgInvalidImage}, fieldErrors(t, err)["image"])
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.OrNil())
	verr.Add("price", "bad")
	verr.Add("name", "Required")
	assert.Equal(t, "validation failed: name: Required; price: bad", verr.Error())
}
