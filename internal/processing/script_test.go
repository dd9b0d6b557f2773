package processing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/vizflow/internal/domain"
)

const helperOutput = `{
  "processedData": [{"name": "Alice", "age": "30"}],
  "errorLogs": [{"error_type": "validation_failed", "message": "Row 2: Validation failed", "row_number": 2, "data": {"name": "", "age": "25"}}]
}`

// TestHelperProcess is not a real test. It stands in for the external
// scripts when re-executed by the runner.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	path := args[len(args)-1]

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(os.Stderr, "missing input %s", path)
			os.Exit(1)
		}
		fmt.Fprint(os.Stdout, helperOutput)
	case "fail":
		fmt.Fprint(os.Stderr, "Traceback: something broke")
		os.Exit(3)
	case "garbage":
		fmt.Fprint(os.Stdout, "not json at all")
	case "sleep":
		time.Sleep(10 * time.Second)
	}
	os.Exit(0)
}

func helperRunner(t *testing.T, mode string, timeout time.Duration) (*Runner, Command) {
	t.Helper()
	runner := &Runner{
		Timeout: timeout,
		TempDir: t.TempDir(),
		Env:     []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
	}
	cmd := Command{Path: os.Args[0], Args: []string{"-test.run=TestHelperProcess", "--"}}
	return runner, cmd
}

func TestScriptProcessorParsesOutput(t *testing.T) {
	runner, cmd := helperRunner(t, "ok", 10*time.Second)
	processor := NewCSVProcessor(cmd, runner)

	result, err := processor.Process(context.Background(), domain.Upload{
		FileName: "people.csv",
		Buffer:   []byte("name,age\nAlice,30\n,25\n"),
	}, domain.ProcessingMetadata{})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}

	if len(result.Data) != 1 || len(result.Errors) != 1 {
		t.Fatalf("expected 1 record and 1 error, got %d/%d", len(result.Data), len(result.Errors))
	}
	if keys := result.Data[0].Keys(); keys[0] != "name" || keys[1] != "age" {
		t.Fatalf("key order not preserved: %v", keys)
	}
	entry := result.Errors[0]
	if entry.Type != "validation_failed" || entry.Row == nil || *entry.Row != 2 {
		t.Fatalf("unexpected error entry: %+v", entry)
	}
	if entry.Data == nil {
		t.Fatalf("expected raw data on error entry")
	}

	leftovers, err := os.ReadDir(runner.TempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected temp file cleanup, found %d files", len(leftovers))
	}
}

func TestScriptProcessorNonZeroExit(t *testing.T) {
	runner, cmd := helperRunner(t, "fail", 10*time.Second)
	processor := NewXMLProcessor(cmd, runner)

	_, err := processor.Process(context.Background(), domain.Upload{FileName: "a.xml", Buffer: []byte("<a/>")}, domain.ProcessingMetadata{})
	if err == nil {
		t.Fatalf("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "exited with code 3") || !strings.Contains(err.Error(), "something broke") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScriptProcessorInvalidOutput(t *testing.T) {
	runner, cmd := helperRunner(t, "garbage", 10*time.Second)
	processor := NewCSVProcessor(cmd, runner)

	_, err := processor.Process(context.Background(), domain.Upload{FileName: "a.csv", Buffer: []byte("x")}, domain.ProcessingMetadata{})
	if err == nil || !strings.Contains(err.Error(), "invalid output") {
		t.Fatalf("expected invalid output error, got %v", err)
	}
}

func TestRunnerTimeout(t *testing.T) {
	runner, cmd := helperRunner(t, "sleep", 200*time.Millisecond)

	start := time.Now()
	_, err := runner.Run(context.Background(), cmd, "ignored")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout was not enforced")
	}
}

func TestParseScriptOutputRequiresArrays(t *testing.T) {
	if _, _, err := parseScriptOutput([]byte(`{"processedData": []}`)); err == nil {
		t.Fatalf("expected error when errorLogs is missing")
	}
	data, errs, err := parseScriptOutput([]byte(`{"processedData": [], "errorLogs": [{"type": "missing_field", "row": 4}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 0 || len(errs) != 1 || *errs[0].Row != 4 || errs[0].Type != "missing_field" {
		t.Fatalf("unexpected parse result: %v %+v", data, errs)
	}
}

func TestParseScriptOutputRejectsTrailingText(t *testing.T) {
	out := []byte(`{"processedData":[{"a":1}],"errorLogs":[]} Traceback: boom`)
	if _, _, err := parseScriptOutput(out); err == nil {
		t.Fatalf("expected error for output with trailing text")
	}
}
