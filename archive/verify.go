package archive

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// verifyPDF runs pdfcpu's structural validation over the fetched bytes
// and returns the page count. The magic-header check catches error pages
// served as 200; this catches truncated or mangled documents.
func verifyPDF(body []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(body), conf)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}
