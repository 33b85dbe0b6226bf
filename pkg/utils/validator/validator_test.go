package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type askRequest struct {
	Question string `json:"question" binding:"required,notblank,max=1000"`
}

type uploadMeta struct {
	Filename string `form:"filename" binding:"required,docext"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		obj     any
		wantErr bool
	}{
		{"valid question", &askRequest{Question: "How much is Pro?"}, false},
		{"empty question", &askRequest{}, true},
		{"blank question", &askRequest{Question: "   "}, true},
		{"too long", &askRequest{Question: string(make([]byte, 1001))}, true},
		{"txt file", &uploadMeta{Filename: "faq.TXT"}, false},
		{"md file", &uploadMeta{Filename: "guide.md"}, false},
		{"pdf file", &uploadMeta{Filename: "guide.pdf"}, true},
		{"non struct", "plain", false},
		{"nil pointer", (*askRequest)(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.obj)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	v := New()

	err := v.ValidateStruct(&askRequest{Question: " "})
	require.Error(t, err)
	assert.Equal(t, "question must not be blank", v.Translate(err, LangEN))
	assert.Equal(t, "question不能为空白", v.Translate(err, LangZH))

	err = v.ValidateStruct(&uploadMeta{Filename: "a.exe"})
	require.Error(t, err)
	assert.Contains(t, v.Translate(err, LangEN), "filename must be a .txt or .md file")
}

func TestHasDocumentExtension(t *testing.T) {
	assert.True(t, HasDocumentExtension("notes.Md"))
	assert.False(t, HasDocumentExtension("notes"))
	assert.False(t, HasDocumentExtension("notes.md.exe"))
}
