package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutridash/internal/nutrition/ingest"
)

const sampleCSV = "Country,Income Classification,Severe Wasting,Wasting,Overweight,Stunting,Underweight,U5 Population ('000s)\n" +
	"Chad,0,1.2,4.5,2.1,32.1,18.0,2719.0\n" +
	"Peru,2,0.1,0.4,7.0,11.0,3.0,2900.5\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("KAFKA_BROKERS", "")
	backendFlag, collectionFlag, summaryMetric, topPNG, exportOut = "", "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestCommand(t *testing.T) {
	out, err := execute(t, "ingest", "--file", writeTemp(t, sampleCSV))
	require.NoError(t, err)

	var res ingest.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Created)
	assert.Len(t, res.IDs, 2)
}

func TestIngestCommandStopsOnInvalidRow(t *testing.T) {
	bad := sampleCSV + "Mali,9,1,1,1,1,1,1\n"
	out, err := execute(t, "ingest", "--file", writeTemp(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")

	var res ingest.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 3, res.FailedRow)
}

func TestIngestCommandMissingFile(t *testing.T) {
	_, err := execute(t, "ingest", "--file", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSummaryCommandEmptyStore(t *testing.T) {
	out, err := execute(t, "summary", "--metric", "stunting")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "no data"`)
}

func TestTopCommandValidatesFlags(t *testing.T) {
	_, err := execute(t, "top", "--metric", "height")
	assert.Error(t, err)

	_, err = execute(t, "top", "--metric", "stunting", "--n", "0")
	assert.Error(t, err)
}

func TestExportCommandWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := execute(t, "export", "--out", path)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Country,Income Classification")
}

func TestWatchRequiresBrokers(t *testing.T) {
	_, err := execute(t, "watch")
	assert.ErrorContains(t, err, "KAFKA_BROKERS")
}
