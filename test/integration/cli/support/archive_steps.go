package support

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) openArchive(filename string) (*zip.Reader, error) {
	data, err := os.ReadFile(testCtx.TempPath(filename))
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s is not a zip archive: %w", filename, err)
	}
	return zr, nil
}

// theArchiveShouldContainEntries checks the number of labels in a ZIP.
func (testCtx *TestContext) theArchiveShouldContainEntries(filename string, n int) error {
	zr, err := testCtx.openArchive(filename)
	if err != nil {
		return err
	}
	if len(zr.File) != n {
		return fmt.Errorf("archive %s has %d entries, want %d", filename, len(zr.File), n)
	}
	return nil
}

// theArchiveEntriesShouldBe checks entry names and order.
func (testCtx *TestContext) theArchiveEntriesShouldBe(filename string, table *godog.Table) error {
	zr, err := testCtx.openArchive(filename)
	if err != nil {
		return err
	}
	var want, got []string
	for _, row := range table.Rows {
		want = append(want, row.Cells[0].Value)
	}
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	if strings.Join(want, ",") != strings.Join(got, ",") {
		return fmt.Errorf("archive entries %v, want %v", got, want)
	}
	return nil
}

// everyArchiveEntryShouldBeAPNG decodes each entry.
func (testCtx *TestContext) everyArchiveEntryShouldBeAPNG(filename string) error {
	zr, err := testCtx.openArchive(filename)
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return err
		}
		_, err = png.DecodeConfig(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("entry %s is not a PNG: %w", f.Name, err)
		}
	}
	return nil
}

// theFileShouldBeAPNG checks a written sheet decodes as PNG.
func (testCtx *TestContext) theFileShouldBeAPNG(filename string) error {
	f, err := os.Open(testCtx.TempPath(filename))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := png.DecodeConfig(f); err != nil {
		return fmt.Errorf("%s is not a PNG: %w", filename, err)
	}
	return nil
}

// RegisterArchiveSteps registers ZIP and PNG output steps.
func (testCtx *TestContext) RegisterArchiveSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the archive "([^"]*)" should contain (\d+) entries$`, testCtx.theArchiveShouldContainEntries)
	sc.Step(`^the archive "([^"]*)" entries should be:$`, testCtx.theArchiveEntriesShouldBe)
	sc.Step(`^every entry of "([^"]*)" should be a PNG$`, testCtx.everyArchiveEntryShouldBeAPNG)
	sc.Step(`^the file "([^"]*)" should be a PNG$`, testCtx.theFileShouldBeAPNG)
}
