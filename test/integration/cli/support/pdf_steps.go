package support

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/labelkit/internal/output"
)

// theFileShouldBeAPDFWithPages checks a written PDF and its page count.
func (testCtx *TestContext) theFileShouldBeAPDFWithPages(filename string, pages int) error {
	data, err := os.ReadFile(testCtx.TempPath(filename))
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return fmt.Errorf("%s is not a PDF", filename)
	}
	n, err := output.PageCount(data)
	if err != nil {
		return err
	}
	if n != pages {
		return fmt.Errorf("%s has %d pages, want %d", filename, n, pages)
	}
	return nil
}

// RegisterPDFSteps registers PDF output steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the file "([^"]*)" should be a PDF with (\d+) pages?$`, testCtx.theFileShouldBeAPDFWithPages)
}
