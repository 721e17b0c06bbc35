package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/remote"
)

// makeHTTPRequest sends a request to the scenario's server and records
// the status, body and headers.
func (testCtx *TestContext) makeHTTPRequest(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, testCtx.GetServerURL()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = respBody
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		testCtx.LastHTTPHeaders[name] = resp.Header.Get(name)
	}
	return nil
}

// numberedValues returns n distinct numeric values starting at first.
func numberedValues(first, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(first + i)
	}
	return out
}

// aFreePortIsReserved picks the port {port} expands to.
func (testCtx *TestContext) aFreePortIsReserved() error {
	port, err := freePort()
	if err != nil {
		return err
	}
	testCtx.ServerPort = port
	return nil
}

func (testCtx *TestContext) iStartTheServerWith(command string) error {
	return testCtx.StartServer(command)
}

func (testCtx *TestContext) theHealthEndpointShouldRespondWithStatus(status int) error {
	if err := testCtx.makeHTTPRequest(http.MethodGet, remote.PathHealth, nil); err != nil {
		return err
	}
	return testCtx.theResponseStatusShouldBe(status)
}

// iRequestAPrintSheet posts n numbered Code 128 values to the print endpoint.
func (testCtx *TestContext) iRequestAPrintSheet(n int, format string) error {
	return testCtx.makeHTTPRequest(http.MethodPost, remote.PathPrint, remote.PrintRequest{
		Data:   numberedValues(30001, n),
		Config: barcode.DefaultConfig(),
		Format: format,
	})
}

// iRequestBulkLabelsFor posts the table's values to the bulk endpoint.
func (testCtx *TestContext) iRequestBulkLabelsFor(table *godog.Table) error {
	var data []string
	for _, row := range table.Rows {
		data = append(data, row.Cells[0].Value)
	}
	return testCtx.makeHTTPRequest(http.MethodPost, remote.PathBulk, remote.BulkRequest{
		Data:   data,
		Config: barcode.DefaultConfig(),
	})
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != want {
		return fmt.Errorf("header %s is %q, want %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseBodyShouldStartWith(prefix string) error {
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, []byte(prefix)) {
		n := min(len(testCtx.LastHTTPResponse), 16)
		return fmt.Errorf("response body starts with %q, want %q", testCtx.LastHTTPResponse[:n], prefix)
	}
	return nil
}

// theResponseShouldBeAPDFWithPages counts the pages of a PDF response.
func (testCtx *TestContext) theResponseShouldBeAPDFWithPages(pages int) error {
	if err := testCtx.theResponseHeaderShouldBe("Content-Type", output.ContentTypePDF); err != nil {
		return err
	}
	n, err := output.PageCount(testCtx.LastHTTPResponse)
	if err != nil {
		return err
	}
	if n != pages {
		return fmt.Errorf("pdf has %d pages, want %d", n, pages)
	}
	return nil
}

// theErrorResponseShouldName checks the JSON error body's kind and field.
func (testCtx *TestContext) theErrorResponseShouldName(kind, field string) error {
	var er remote.ErrorResponse
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &er); err != nil {
		return fmt.Errorf("response is not an error body: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	if er.Success || er.Kind != kind || er.Field != field {
		return fmt.Errorf("error body %+v, want kind %q field %q", er, kind, field)
	}
	if strings.TrimSpace(er.Error) == "" {
		return fmt.Errorf("error body has no message")
	}
	return nil
}

// RegisterServerSteps registers server lifecycle and HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a free port is reserved$`, testCtx.aFreePortIsReserved)
	sc.Step(`^I start the server with "([^"]*)"$`, testCtx.iStartTheServerWith)
	sc.Step(`^an in-process server is running$`, testCtx.anInProcessServerIsRunning)

	sc.Step(`^the health endpoint should respond with status (\d+)$`, testCtx.theHealthEndpointShouldRespondWithStatus)
	sc.Step(`^I request a print sheet of (\d+) values as "([^"]*)"$`, testCtx.iRequestAPrintSheet)
	sc.Step(`^I request bulk labels for:$`, testCtx.iRequestBulkLabelsFor)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response body should start with "([^"]*)"$`, testCtx.theResponseBodyShouldStartWith)
	sc.Step(`^the response should be a PDF with (\d+) pages?$`, testCtx.theResponseShouldBeAPDFWithPages)
	sc.Step(`^the error response should name kind "([^"]*)" and field "([^"]*)"$`, testCtx.theErrorResponseShouldName)
}
