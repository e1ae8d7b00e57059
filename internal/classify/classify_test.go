package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Category
	}{
		{
			name:     "plain xml invoice",
			filename: "IT02327190845_00001.xml",
			want:     CategoryInvoice,
		},
		{
			name:     "signed envelope",
			filename: "IT02327190845_00001.xml.p7m",
			want:     CategoryInvoice,
		},
		{
			name:     "uppercase extension",
			filename: "FATTURA.XML",
			want:     CategoryInvoice,
		},
		{
			name:     "metadata marker",
			filename: "IT02327190845_00001_MT_001.xml",
			want:     CategoryMetadata,
		},
		{
			name:     "metadato word any casing",
			filename: "fattura_MetaDato.xml",
			want:     CategoryMetadata,
		},
		{
			name:     "delivery receipt",
			filename: "IT02327190845_00001_RC_001.xml",
			want:     CategoryNotification,
		},
		{
			name:     "rejection receipt with invoice extension",
			filename: "IT02327190845_00001_NS_001.xml",
			want:     CategoryNotification,
		},
		{
			name:     "outcome notification",
			filename: "IT02327190845_00001_NE_002.xml",
			want:     CategoryNotification,
		},
		{
			name:     "metadata wins over notification",
			filename: "IT02327190845_00001_NS_001_MT_002.xml",
			want:     CategoryMetadata,
		},
		{
			name:     "unsupported extension",
			filename: "report.pdf",
			want:     CategoryUnsupported,
		},
		{
			name:     "no extension",
			filename: "README",
			want:     CategoryUnsupported,
		},
		{
			name:     "full path uses base name",
			filename: "/tmp/input/IT02327190845_00001.xml",
			want:     CategoryInvoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.filename))
		})
	}
}

func TestClassifyIndependentOfContent(t *testing.T) {
	// Classification must never require reading the file: a notification
	// name is a notification even if no such file exists.
	assert.Equal(t, CategoryNotification, Classify("ghost_NS_001.xml"))
}

func TestIsMetadataAndIsNotification(t *testing.T) {
	assert.True(t, IsMetadata("a_MT_001.xml"))
	assert.True(t, IsMetadata("a_metadato.xml"))
	assert.False(t, IsMetadata("a_NS_001.xml"))

	assert.True(t, IsNotification("a_NS_001.xml"))
	assert.False(t, IsNotification("a_MT_001.xml"))
}
