package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out)

	p.Update("Extracting features", 10)
	p.Update("Extracting features", 60)
	p.Update("Clustering customers", 150)
	p.Finish()
	p.Finish()

	assert.Contains(t, out.String(), "Clustering customers")
	assert.True(t, p.bar.IsFinished())
}
